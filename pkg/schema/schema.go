// Package schema defines the content schema model for eggcms: singletons,
// collections and reusable blocks, their typed fields, and the structural
// rules a schema must satisfy before it can be persisted.
package schema

import (
	"fmt"
	"strings"
)

// Kind classifies a schema.
type Kind string

// Schema kinds. Only singletons and collections are backed by tables; blocks
// are structural templates nested inside block and blocks fields.
const (
	KindSingleton  Kind = "singleton"
	KindCollection Kind = "collection"
	KindBlock      Kind = "block"
)

// Valid reports whether k is a recognized schema kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSingleton, KindCollection, KindBlock:
		return true
	}
	return false
}

// ReservedFields are column names owned by the engine. No schema field may
// use them.
var ReservedFields = []string{"id", "created_at", "updated_at", "_type", "draft", "_meta"}

// IsReserved reports whether name is a reserved field name.
func IsReserved(name string) bool {
	for _, r := range ReservedFields {
		if r == name {
			return true
		}
	}
	return false
}

// DefaultLabelField is the field used for row labels when nothing else applies.
const DefaultLabelField = "title"

// Definition is a named, typed collection of fields. Name doubles as the
// storage table name for singletons and collections.
type Definition struct {
	Name       string            `json:"name"`
	Label      string            `json:"label,omitempty"`
	Kind       Kind              `json:"kind"`
	LabelField string            `json:"labelField,omitempty"`
	Fields     []FieldDefinition `json:"fields"`
}

// Singleton builds a singleton definition.
func Singleton(name string, fields ...FieldDefinition) *Definition {
	return &Definition{Name: name, Kind: KindSingleton, Fields: fields}
}

// Collection builds a collection definition.
func Collection(name string, fields ...FieldDefinition) *Definition {
	return &Definition{Name: name, Kind: KindCollection, Fields: fields}
}

// Block builds a reusable block definition.
func Block(name string, fields ...FieldDefinition) *Definition {
	return &Definition{Name: name, Kind: KindBlock, Fields: fields}
}

// HasTable reports whether the schema is backed by a physical table.
func (d *Definition) HasTable() bool {
	return d.Kind == KindSingleton || d.Kind == KindCollection
}

// DraftsEnabled reports whether rows carry a draft flag.
func (d *Definition) DraftsEnabled() bool {
	return d.Kind == KindCollection
}

// Field returns the named field, or nil.
func (d *Definition) Field(name string) *FieldDefinition {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// FieldNames returns the declared field names in order.
func (d *Definition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// DisplayLabel returns the schema label, or its name in sentence case.
func (d *Definition) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return sentenceCase(d.Name)
}

// LabelFields returns the fields used to compute a human-readable label for a
// row. An explicit labelField (space separated) wins; otherwise "title" if the
// schema declares it, otherwise the source fields of the first slug, otherwise
// "title" regardless.
func (d *Definition) LabelFields() []string {
	if names := strings.Fields(d.LabelField); len(names) > 0 {
		return names
	}
	if d.Field(DefaultLabelField) != nil {
		return []string{DefaultLabelField}
	}
	for _, f := range d.Fields {
		if f.Type == FieldSlug {
			if names := f.From.Names(); len(names) > 0 {
				return names
			}
		}
	}
	return []string{DefaultLabelField}
}

// RowLabel joins the label field values of a row. Returns "Untitled" when all
// of them are empty.
func (d *Definition) RowLabel(values map[string]any) string {
	var parts []string
	for _, name := range d.LabelFields() {
		v, ok := values[name]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "Untitled"
	}
	return strings.Join(parts, " ")
}

// Find returns the table-backed schema with the given name. Block schemas are
// never returned.
func Find(defs []*Definition, name string) (*Definition, bool) {
	for _, d := range defs {
		if d.Name == name && d.HasTable() {
			return d, true
		}
	}
	return nil, false
}
