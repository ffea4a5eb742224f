package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

// Engine-managed columns.
const (
	colID        = "id"
	colDraft     = "draft"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
)

// Repository performs typed CRUD against schema tables.
// Implements types.ContentStore.
type Repository struct {
	db    *sql.DB
	codec *Codec
	now   func() time.Time
}

var _ types.ContentStore = (*Repository)(nil)

// NewRepository creates a repository over db.
func NewRepository(db *sql.DB, codec *Codec) *Repository {
	return &Repository{db: db, codec: codec, now: time.Now}
}

// Codec returns the repository's value codec.
func (r *Repository) Codec() *Codec {
	return r.codec
}

// List returns rows newest first. Collections exclude drafts unless
// includeDrafts is set.
func (r *Repository) List(ctx context.Context, def *schema.Definition, includeDrafts bool) ([]*types.Item, error) {
	if err := requireTable(def); err != nil {
		return nil, err
	}
	query := "SELECT " + selectColumns(def) + " FROM " + quoteIdent(def.Name)
	if def.DraftsEnabled() && !includeDrafts {
		query += " WHERE " + quoteIdent(colDraft) + " = 0"
	}
	query += " ORDER BY " + quoteIdent(colCreatedAt) + " DESC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &types.StorageError{Op: "list", Schema: def.Name, Err: err}
	}
	defer rows.Close()

	var items []*types.Item
	for rows.Next() {
		item, err := r.scanItem(def, rows)
		if err != nil {
			return nil, &types.StorageError{Op: "list", Schema: def.Name, Err: err}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "list", Schema: def.Name, Err: err}
	}
	return items, nil
}

// Get fetches one row by id.
func (r *Repository) Get(ctx context.Context, def *schema.Definition, id string) (*types.Item, bool, error) {
	if err := requireTable(def); err != nil {
		return nil, false, err
	}
	query := "SELECT " + selectColumns(def) + " FROM " + quoteIdent(def.Name) +
		" WHERE " + quoteIdent(colID) + " = ?"
	return r.queryOne(ctx, def, "get", query, id)
}

// GetSingleton fetches the first row of a table.
func (r *Repository) GetSingleton(ctx context.Context, def *schema.Definition) (*types.Item, bool, error) {
	if err := requireTable(def); err != nil {
		return nil, false, err
	}
	query := "SELECT " + selectColumns(def) + " FROM " + quoteIdent(def.Name) + " LIMIT 1"
	return r.queryOne(ctx, def, "get", query)
}

// Create inserts a row with a fresh id and both timestamps set to now.
// Declared fields missing from the input are left to their column default.
// Collections are drafts unless the input carries draft.
func (r *Repository) Create(ctx context.Context, def *schema.Definition, fields map[string]any) (*types.Item, error) {
	if err := requireTable(def); err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := formatTime(r.now())

	columns := []string{quoteIdent(colID)}
	args := []any{id}
	for i := range def.Fields {
		f := &def.Fields[i]
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		enc, err := r.codec.Encode(f, v)
		if err != nil {
			return nil, err
		}
		columns = append(columns, quoteIdent(f.Name))
		args = append(args, enc)
	}
	if def.DraftsEnabled() {
		draft := int64(1)
		if v, ok := fields[colDraft]; ok && v != nil {
			d, err := encodeDraft(v)
			if err != nil {
				return nil, err
			}
			draft = d
		}
		columns = append(columns, quoteIdent(colDraft))
		args = append(args, draft)
	}
	columns = append(columns, quoteIdent(colCreatedAt), quoteIdent(colUpdatedAt))
	args = append(args, now, now)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(def.Name), strings.Join(columns, ", "), placeholders(len(columns)))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, &types.StorageError{Op: "create", Schema: def.Name, Err: err}
	}

	item, ok, err := r.Get(ctx, def, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.StorageError{Op: "create", Schema: def.Name, Err: fmt.Errorf("row %s vanished after insert", id)}
	}
	return item, nil
}

// Update writes only the fields present in the input, refreshes updated_at,
// and changes a collection's draft flag only if the input carries draft.
// Reports false when no row has the id.
func (r *Repository) Update(ctx context.Context, def *schema.Definition, id string, fields map[string]any) (*types.Item, bool, error) {
	if err := requireTable(def); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, types.ErrInvalidID
	}

	var (
		sets []string
		args []any
	)
	for i := range def.Fields {
		f := &def.Fields[i]
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		enc, err := r.codec.Encode(f, v)
		if err != nil {
			return nil, false, err
		}
		sets = append(sets, quoteIdent(f.Name)+" = ?")
		args = append(args, enc)
	}
	if def.DraftsEnabled() {
		if v, ok := fields[colDraft]; ok && v != nil {
			d, err := encodeDraft(v)
			if err != nil {
				return nil, false, err
			}
			sets = append(sets, quoteIdent(colDraft)+" = ?")
			args = append(args, d)
		}
	}
	sets = append(sets, quoteIdent(colUpdatedAt)+" = ?")
	args = append(args, formatTime(r.now()), id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(def.Name), strings.Join(sets, ", "), quoteIdent(colID))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, false, &types.StorageError{Op: "update", Schema: def.Name, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, &types.StorageError{Op: "update", Schema: def.Name, Err: err}
	}
	if n == 0 {
		return nil, false, nil
	}
	return r.Get(ctx, def, id)
}

// Delete removes a row and reports whether one was removed.
func (r *Repository) Delete(ctx context.Context, def *schema.Definition, id string) (bool, error) {
	if err := requireTable(def); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM "+quoteIdent(def.Name)+" WHERE "+quoteIdent(colID)+" = ?", id)
	if err != nil {
		return false, &types.StorageError{Op: "delete", Schema: def.Name, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &types.StorageError{Op: "delete", Schema: def.Name, Err: err}
	}
	return n > 0, nil
}

// UpsertSingleton updates the singleton's row, creating it on first write.
// The existence check and the write are not atomic: two concurrent first
// writes can both insert.
func (r *Repository) UpsertSingleton(ctx context.Context, def *schema.Definition, fields map[string]any) (*types.Item, error) {
	if def.Kind != schema.KindSingleton {
		return nil, fmt.Errorf("%w: %s", types.ErrNotSingleton, def.Name)
	}
	existing, ok, err := r.GetSingleton(ctx, def)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r.Create(ctx, def, fields)
	}
	item, ok, err := r.Update(ctx, def, existing.ID, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r.Create(ctx, def, fields)
	}
	return item, nil
}

func (r *Repository) queryOne(ctx context.Context, def *schema.Definition, op, query string, args ...any) (*types.Item, bool, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, &types.StorageError{Op: op, Schema: def.Name, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, &types.StorageError{Op: op, Schema: def.Name, Err: err}
		}
		return nil, false, nil
	}
	item, err := r.scanItem(def, rows)
	if err != nil {
		return nil, false, &types.StorageError{Op: op, Schema: def.Name, Err: err}
	}
	return item, true, nil
}

// scanItem reads a row selected with selectColumns into an Item.
func (r *Repository) scanItem(def *schema.Definition, rows *sql.Rows) (*types.Item, error) {
	n := len(def.Fields) + 3
	if def.DraftsEnabled() {
		n++
	}
	raw := make([]any, n)
	dest := make([]any, n)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	id, ok := textValue(raw[0])
	if !ok {
		return nil, errors.New("row has no id")
	}
	item := &types.Item{ID: id, Fields: make(map[string]any, len(def.Fields))}
	for i := range def.Fields {
		f := &def.Fields[i]
		item.Fields[f.Name] = r.codec.Decode(f, raw[i+1])
	}
	next := len(def.Fields) + 1
	if def.DraftsEnabled() {
		draft := decodeDraft(raw[next])
		item.Meta.Draft = &draft
		next++
	}
	item.Meta.CreatedAt, _ = textValue(raw[next])
	item.Meta.UpdatedAt, _ = textValue(raw[next+1])
	return item, nil
}

// selectColumns lists the columns scanItem expects, in order. Columns kept
// for fields no longer in the schema are not selected.
func selectColumns(def *schema.Definition) string {
	cols := make([]string, 0, len(def.Fields)+4)
	cols = append(cols, quoteIdent(colID))
	for _, f := range def.Fields {
		cols = append(cols, quoteIdent(f.Name))
	}
	if def.DraftsEnabled() {
		cols = append(cols, quoteIdent(colDraft))
	}
	cols = append(cols, quoteIdent(colCreatedAt), quoteIdent(colUpdatedAt))
	return strings.Join(cols, ", ")
}

func requireTable(def *schema.Definition) error {
	if def == nil {
		return types.ErrSchemaNotFound
	}
	if !def.HasTable() {
		return fmt.Errorf("%w: %s", types.ErrNotTableBacked, def.Name)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func textValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}
