package schema

import (
	"errors"
	"fmt"
	"strings"
)

// MaxBlockDepth bounds how deeply block definitions may nest.
const MaxBlockDepth = 32

// Validation errors.
var (
	ErrSchemaName       = errors.New("schema name must not be empty")
	ErrSchemaKind       = errors.New("invalid schema kind")
	ErrDuplicateSchema  = errors.New("schema defined twice")
	ErrReservedField    = errors.New("field name is reserved")
	ErrDuplicateField   = errors.New("field defined twice")
	ErrUnknownFieldType = errors.New("unknown field type")
	ErrSlugSource       = errors.New("slug field requires 'from'")
	ErrSelectOptions    = errors.New("select field requires 'options'")
	ErrBlocksEmpty      = errors.New("blocks field requires 'blocks'")
	ErrBlockMissing     = errors.New("block field requires 'block'")
	ErrBlockCycle       = errors.New("block definition references itself")
	ErrBlockDepth       = errors.New("block definitions nested too deeply")
)

// ValidationError reports the first structural violation found in a schema.
type ValidationError struct {
	Schema string
	Field  string // dotted path for nested block fields; empty for schema-level errors
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema %q: %v", e.Schema, e.Err)
	}
	return fmt.Sprintf("schema %q: field %q: %v", e.Schema, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks a schema's structure and returns the first violation found.
// Fields are checked in declaration order; block and blocks fields are checked
// recursively through their nested block definitions.
func Validate(d *Definition) error {
	if d == nil || strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Err: ErrSchemaName}
	}
	if !d.Kind.Valid() {
		return &ValidationError{Schema: d.Name, Err: fmt.Errorf("%w: %q", ErrSchemaKind, d.Kind)}
	}
	v := validator{root: d.Name, active: map[*Definition]bool{d: true}}
	return v.fields(d, "", 0)
}

// ValidateAll validates every schema and checks that schema names are unique.
func ValidateAll(defs []*Definition) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := Validate(d); err != nil {
			return err
		}
		if seen[d.Name] {
			return &ValidationError{Schema: d.Name, Err: ErrDuplicateSchema}
		}
		seen[d.Name] = true
	}
	return nil
}

type validator struct {
	root   string
	active map[*Definition]bool // block definitions on the current path
}

func (v *validator) fail(path string, err error) error {
	return &ValidationError{Schema: v.root, Field: path, Err: err}
}

func (v *validator) fields(d *Definition, prefix string, depth int) error {
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		path := prefix + f.Name

		if IsReserved(f.Name) {
			return v.fail(path, ErrReservedField)
		}
		if seen[f.Name] {
			return v.fail(path, ErrDuplicateField)
		}
		seen[f.Name] = true

		if !f.Type.Valid() {
			return v.fail(path, fmt.Errorf("%w: %q", ErrUnknownFieldType, f.Type))
		}

		switch f.Type {
		case FieldSlug:
			if len(f.From.Names()) == 0 {
				return v.fail(path, ErrSlugSource)
			}
		case FieldSelect:
			if len(f.Options) == 0 {
				return v.fail(path, ErrSelectOptions)
			}
		case FieldBlocks:
			if len(f.Blocks) == 0 {
				return v.fail(path, ErrBlocksEmpty)
			}
			for _, b := range f.Blocks {
				if b == nil {
					return v.fail(path, ErrBlocksEmpty)
				}
			}
		case FieldBlock:
			if f.Block == nil {
				return v.fail(path, ErrBlockMissing)
			}
		}

		for _, nested := range f.NestedBlocks() {
			if err := v.nested(nested, path, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) nested(b *Definition, path string, depth int) error {
	if depth > MaxBlockDepth {
		return v.fail(path, ErrBlockDepth)
	}
	if v.active[b] {
		return v.fail(path, fmt.Errorf("%w: %q", ErrBlockCycle, b.Name))
	}
	v.active[b] = true
	defer delete(v.active, b)
	return v.fields(b, path+"."+b.Name+".", depth)
}
