// Package sqlite implements the eggcms persistence engine on an embedded
// SQLite database: schema reconciliation into tables, typed content CRUD
// with draft/publish semantics, and the media registry.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/lowercasename/eggcms/pkg/types"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "eggcms.db"

// Connection pragmas applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

// Backend owns the datastore handle and the components built on it.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	log      zerolog.Logger

	migrator *Migrator
	repo     *Repository
	media    *MediaTable
}

// NewBackend creates a detached backend. Call Attach to open the datastore.
func NewBackend(logger zerolog.Logger) *Backend {
	return &Backend{log: logger}
}

// Attach opens (creating if needed) the database in config.DataDir and
// creates the internal tables. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := Open(filepath.Join(dataDir, DatabaseFile))
	if err != nil {
		return err
	}
	for _, stmt := range internalDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("create internal tables: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.migrator = NewMigrator(db, b.log.With().Str("component", "migrate").Logger())
	b.repo = NewRepository(db, NewCodec(config.PublicURL))
	b.media = NewMediaTable(db)
	b.attached = true
	return nil
}

// Detach closes the datastore. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.migrator = nil
	b.repo = nil
	b.media = nil
	b.attached = false
	return nil
}

// Migrator returns the schema reconciler.
func (b *Backend) Migrator() (*Migrator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	return b.migrator, nil
}

// Repository returns the content repository.
func (b *Backend) Repository() (*Repository, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	return b.repo, nil
}

// Media returns the media registry.
func (b *Backend) Media() (*MediaTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	return b.media, nil
}

// Open opens a SQLite database at path with the engine's connection pragmas.
func Open(path string) (*sql.DB, error) {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
