package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// FieldType names the kind of value a field holds. The set is closed; every
// consumer that dispatches on it goes through fieldKinds.
type FieldType string

// Supported field types.
const (
	FieldString   FieldType = "string"
	FieldText     FieldType = "text"
	FieldRichtext FieldType = "richtext"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDatetime FieldType = "datetime"
	FieldImage    FieldType = "image"
	FieldSlug     FieldType = "slug"
	FieldSelect   FieldType = "select"
	FieldBlocks   FieldType = "blocks"
	FieldBlock    FieldType = "block"
	FieldLink     FieldType = "link"
)

// Storage classes for field values.
const (
	SQLText    = "TEXT"
	SQLReal    = "REAL"
	SQLInteger = "INTEGER"
)

// fieldKind describes how a field type is stored.
type fieldKind struct {
	sqlType    string
	structured bool // serialized as JSON text
}

var fieldKinds = map[FieldType]fieldKind{
	FieldString:   {sqlType: SQLText},
	FieldText:     {sqlType: SQLText},
	FieldRichtext: {sqlType: SQLText},
	FieldNumber:   {sqlType: SQLReal},
	FieldBoolean:  {sqlType: SQLInteger},
	FieldDatetime: {sqlType: SQLText},
	FieldImage:    {sqlType: SQLText},
	FieldSlug:     {sqlType: SQLText},
	FieldSelect:   {sqlType: SQLText},
	FieldBlocks:   {sqlType: SQLText, structured: true},
	FieldBlock:    {sqlType: SQLText, structured: true},
	FieldLink:     {sqlType: SQLText, structured: true},
}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	_, ok := fieldKinds[t]
	return ok
}

// SQLType returns the column type used to store values of this type.
// Unknown types are stored as TEXT.
func (t FieldType) SQLType() string {
	if k, ok := fieldKinds[t]; ok {
		return k.sqlType
	}
	return SQLText
}

// Structured reports whether values of this type are opaque structured data
// persisted as JSON text.
func (t FieldType) Structured() bool {
	return fieldKinds[t].structured
}

// SlugSource lists the fields a slug is derived from. It decodes from either a
// single field name or a list of names.
type SlugSource []string

// UnmarshalYAML accepts a scalar or a sequence.
func (s *SlugSource) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*s = nil
			return nil
		}
		*s = SlugSource{value.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*s = names
		return nil
	default:
		return fmt.Errorf("slug source must be a field name or a list of field names")
	}
}

// UnmarshalJSON accepts a string or an array of strings.
func (s *SlugSource) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = SlugSource{one}
		}
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("slug source must be a field name or a list of field names")
	}
	*s = names
	return nil
}

// Names returns the non-empty source field names.
func (s SlugSource) Names() []string {
	out := make([]string, 0, len(s))
	for _, n := range s {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// FieldDefinition is one typed slot in a schema.
type FieldDefinition struct {
	Name        string        `json:"name"`
	Type        FieldType     `json:"type"`
	Label       string        `json:"label,omitempty"`
	Required    bool          `json:"required,omitempty"`
	Default     any           `json:"default,omitempty"`
	Placeholder string        `json:"placeholder,omitempty"`
	Options     []string      `json:"options,omitempty"`
	From        SlugSource    `json:"from,omitempty"`
	Blocks      []*Definition `json:"blocks,omitempty"`
	Block       *Definition   `json:"block,omitempty"`
	Collections []string      `json:"collections,omitempty"`
}

// HasDefault reports whether the field declares a default value.
func (f FieldDefinition) HasDefault() bool {
	return f.Default != nil
}

// NestedBlocks returns the block definitions a block or blocks field refers to.
func (f FieldDefinition) NestedBlocks() []*Definition {
	switch f.Type {
	case FieldBlocks:
		return f.Blocks
	case FieldBlock:
		if f.Block != nil {
			return []*Definition{f.Block}
		}
	}
	return nil
}

// FieldLabel returns the field's display label: the explicit label when set,
// otherwise the name in sentence case ("siteTitle" becomes "Site title").
func FieldLabel(f FieldDefinition) string {
	if f.Label != "" {
		return f.Label
	}
	return sentenceCase(f.Name)
}

func sentenceCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	out := []rune(strings.TrimSpace(b.String()))
	if len(out) == 0 {
		return ""
	}
	out[0] = unicode.ToUpper(out[0])
	return string(out)
}
