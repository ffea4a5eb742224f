package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lowercasename/eggcms/pkg/types"
)

// MediaTable records uploaded assets in the _media table.
type MediaTable struct {
	db  *sql.DB
	now func() time.Time
}

// NewMediaTable creates a media registry over db.
func NewMediaTable(db *sql.DB) *MediaTable {
	return &MediaTable{db: db, now: time.Now}
}

const mediaColumns = `"id", "filename", "path", "mimetype", "size", "width", "height", "alt", "created_at"`

// Insert records a media row. ID and CreatedAt are assigned when empty.
func (t *MediaTable) Insert(ctx context.Context, m *types.Media) (*types.Media, error) {
	if m.Filename == "" || m.Path == "" {
		return nil, fmt.Errorf("%w: media requires filename and path", types.ErrInvalidValue)
	}
	row := *m
	if row.ID == "" {
		row.ID = uuid.Must(uuid.NewV7()).String()
	}
	if row.CreatedAt == "" {
		row.CreatedAt = formatTime(t.now())
	}
	var alt sql.NullString
	if row.Alt != "" {
		alt = sql.NullString{String: row.Alt, Valid: true}
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO "_media" (`+mediaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Filename, row.Path, row.MimeType, row.Size,
		nullInt(row.Width), nullInt(row.Height), alt, row.CreatedAt)
	if err != nil {
		return nil, &types.StorageError{Op: "create", Schema: types.MediaTable, Err: err}
	}
	return &row, nil
}

// Get fetches a media row by id.
func (t *MediaTable) Get(ctx context.Context, id string) (*types.Media, bool, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM "_media" WHERE "id" = ?`, id)
	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &types.StorageError{Op: "get", Schema: types.MediaTable, Err: err}
	}
	return m, true, nil
}

// List returns all media rows, newest first.
func (t *MediaTable) List(ctx context.Context) ([]*types.Media, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM "_media" ORDER BY "created_at" DESC`)
	if err != nil {
		return nil, &types.StorageError{Op: "list", Schema: types.MediaTable, Err: err}
	}
	defer rows.Close()

	var out []*types.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, &types.StorageError{Op: "list", Schema: types.MediaTable, Err: err}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "list", Schema: types.MediaTable, Err: err}
	}
	return out, nil
}

// Delete removes a media row and reports whether one was removed.
func (t *MediaTable) Delete(ctx context.Context, id string) (bool, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM "_media" WHERE "id" = ?`, id)
	if err != nil {
		return false, &types.StorageError{Op: "delete", Schema: types.MediaTable, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &types.StorageError{Op: "delete", Schema: types.MediaTable, Err: err}
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(s rowScanner) (*types.Media, error) {
	var (
		m             types.Media
		width, height sql.NullInt64
		alt           sql.NullString
	)
	if err := s.Scan(&m.ID, &m.Filename, &m.Path, &m.MimeType, &m.Size, &width, &height, &alt, &m.CreatedAt); err != nil {
		return nil, err
	}
	if width.Valid {
		m.Width = &width.Int64
	}
	if height.Valid {
		m.Height = &height.Int64
	}
	m.Alt = alt.String
	return &m, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
