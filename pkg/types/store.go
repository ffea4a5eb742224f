package types

import (
	"context"
	"errors"
	"fmt"

	"github.com/lowercasename/eggcms/pkg/schema"
)

// ContentStore performs typed CRUD over the table of a table-backed schema.
// Absent rows are reported through the boolean results, never as errors.
type ContentStore interface {
	// List returns rows newest first. Drafts are excluded from collections
	// unless includeDrafts is set.
	List(ctx context.Context, def *schema.Definition, includeDrafts bool) ([]*Item, error)

	// Get fetches one row by id.
	Get(ctx context.Context, def *schema.Definition, id string) (*Item, bool, error)

	// GetSingleton fetches a singleton's row, if one was ever written.
	GetSingleton(ctx context.Context, def *schema.Definition) (*Item, bool, error)

	// Create inserts a new row. Collections default to draft.
	Create(ctx context.Context, def *schema.Definition, fields map[string]any) (*Item, error)

	// Update writes only the fields present in the input and refreshes
	// updated_at. Reports false if the id does not exist.
	Update(ctx context.Context, def *schema.Definition, id string, fields map[string]any) (*Item, bool, error)

	// Delete removes a row and reports whether one was removed.
	Delete(ctx context.Context, def *schema.Definition, id string) (bool, error)

	// UpsertSingleton creates the singleton row or updates the existing one.
	UpsertSingleton(ctx context.Context, def *schema.Definition, fields map[string]any) (*Item, error)
}

// MediaStore reads and writes the media registry.
type MediaStore interface {
	Insert(ctx context.Context, m *Media) (*Media, error)
	Get(ctx context.Context, id string) (*Media, bool, error)
	List(ctx context.Context) ([]*Media, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Backend lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// Content operation errors.
var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrNotTableBacked = errors.New("schema is not backed by a table")
	ErrNotSingleton   = errors.New("schema is not a singleton")
	ErrInvalidID      = errors.New("invalid item ID")
	ErrInvalidValue   = errors.New("invalid field value")
)

// StorageError is a datastore failure during a content operation. It is
// distinct from not-found, which is reported as a normal result.
type StorageError struct {
	Op     string
	Schema string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Schema, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
