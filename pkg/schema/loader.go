package schema

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader errors.
var (
	ErrSchemaShape  = errors.New("malformed schema source")
	ErrUnknownBlock = errors.New("unknown block")
)

// schemaDoc is the on-disk form of a schema. Kind may be spelled "type".
type schemaDoc struct {
	Name       string    `yaml:"name"`
	Label      string    `yaml:"label"`
	Kind       string    `yaml:"kind"`
	Type       string    `yaml:"type"`
	LabelField string    `yaml:"labelField"`
	Fields     yaml.Node `yaml:"fields"`
}

func (d *schemaDoc) kind() Kind {
	if d.Kind != "" {
		return Kind(d.Kind)
	}
	return Kind(d.Type)
}

// fieldDoc is the on-disk form of a field. Block and blocks entries are either
// block names or inline block definitions.
type fieldDoc struct {
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"`
	Label       string     `yaml:"label"`
	Required    bool       `yaml:"required"`
	Default     any        `yaml:"default"`
	Placeholder string     `yaml:"placeholder"`
	Options     []string   `yaml:"options"`
	From        SlugSource `yaml:"from"`
	Collections []string   `yaml:"collections"`
	Block       yaml.Node  `yaml:"block"`
	Blocks      yaml.Node  `yaml:"blocks"`
}

// Parse decodes a YAML list of schemas and resolves block references by name
// against the block schemas in the same list. A block referenced from several
// places resolves to the same *Definition.
func Parse(data []byte) ([]*Definition, error) {
	var docs []schemaDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaShape, err)
	}

	r := &resolver{
		named:    make(map[string]*schemaDoc),
		done:     make(map[string]*Definition),
		visiting: make(map[string]bool),
	}
	for i := range docs {
		doc := &docs[i]
		if doc.Name == "" {
			return nil, fmt.Errorf("%w: schema at index %d: missing name", ErrSchemaShape, i)
		}
		if !doc.kind().Valid() {
			return nil, fmt.Errorf("%w: schema %q: kind must be one of singleton, collection, block", ErrSchemaShape, doc.Name)
		}
		if doc.Fields.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: schema %q: fields must be a list", ErrSchemaShape, doc.Name)
		}
		if doc.kind() == KindBlock {
			r.named[doc.Name] = doc
		}
	}

	defs := make([]*Definition, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		var (
			def *Definition
			err error
		)
		if doc.kind() == KindBlock {
			def, err = r.block(doc.Name)
		} else {
			def, err = r.definition(doc)
		}
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile reads and parses a YAML schema file.
func LoadFile(path string) ([]*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

type resolver struct {
	named    map[string]*schemaDoc
	done     map[string]*Definition
	visiting map[string]bool
}

func (r *resolver) block(name string) (*Definition, error) {
	if def, ok := r.done[name]; ok {
		return def, nil
	}
	if r.visiting[name] {
		return nil, fmt.Errorf("%w: %q", ErrBlockCycle, name)
	}
	doc, ok := r.named[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, name)
	}
	r.visiting[name] = true
	def, err := r.definition(doc)
	delete(r.visiting, name)
	if err != nil {
		return nil, err
	}
	r.done[name] = def
	return def, nil
}

func (r *resolver) definition(doc *schemaDoc) (*Definition, error) {
	var fields []fieldDoc
	if doc.Fields.Kind == yaml.SequenceNode {
		if err := doc.Fields.Decode(&fields); err != nil {
			return nil, fmt.Errorf("%w: schema %q: %v", ErrSchemaShape, doc.Name, err)
		}
	}

	def := &Definition{
		Name:       doc.Name,
		Label:      doc.Label,
		Kind:       doc.kind(),
		LabelField: doc.LabelField,
		Fields:     make([]FieldDefinition, 0, len(fields)),
	}
	for _, fd := range fields {
		f := FieldDefinition{
			Name:        fd.Name,
			Type:        FieldType(fd.Type),
			Label:       fd.Label,
			Required:    fd.Required,
			Default:     fd.Default,
			Placeholder: fd.Placeholder,
			Options:     fd.Options,
			From:        fd.From,
			Collections: fd.Collections,
		}
		if fd.Block.Kind != 0 {
			b, err := r.blockNode(&fd.Block)
			if err != nil {
				return nil, fmt.Errorf("schema %q field %q: %w", doc.Name, fd.Name, err)
			}
			f.Block = b
		}
		switch fd.Blocks.Kind {
		case 0:
		case yaml.SequenceNode:
			for _, n := range fd.Blocks.Content {
				b, err := r.blockNode(n)
				if err != nil {
					return nil, fmt.Errorf("schema %q field %q: %w", doc.Name, fd.Name, err)
				}
				f.Blocks = append(f.Blocks, b)
			}
		default:
			return nil, fmt.Errorf("%w: schema %q field %q: blocks must be a list", ErrSchemaShape, doc.Name, fd.Name)
		}
		def.Fields = append(def.Fields, f)
	}
	return def, nil
}

func (r *resolver) blockNode(n *yaml.Node) (*Definition, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return r.block(n.Value)
	case yaml.MappingNode:
		var doc schemaDoc
		if err := n.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaShape, err)
		}
		if doc.kind() == "" {
			doc.Kind = string(KindBlock)
		}
		return r.definition(&doc)
	default:
		return nil, fmt.Errorf("%w: block must be a name or a definition", ErrSchemaShape)
	}
}

// FallbackPolicy decides what Load does when the schema source cannot be used.
type FallbackPolicy int

const (
	// FallbackOnError uses the fallback schemas and reports the load error.
	FallbackOnError FallbackPolicy = iota
	// Strict reports the load error without schemas.
	Strict
)

// Source identifies where loaded schemas came from.
type Source string

const (
	SourceFile     Source = "file"
	SourceFallback Source = "fallback"
)

// LoadResult is the outcome of Load. Err is set when the source file existed
// but could not be used; under FallbackOnError, Schemas then holds the fallback.
type LoadResult struct {
	Schemas []*Definition
	Source  Source
	Path    string
	Err     error
}

// Load reads schemas from path. A missing file (or empty path) silently
// selects fallback; any other failure is handled according to policy.
func Load(path string, fallback []*Definition, policy FallbackPolicy) LoadResult {
	if path == "" {
		return LoadResult{Schemas: fallback, Source: SourceFallback}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return LoadResult{Schemas: fallback, Source: SourceFallback, Path: path}
	}

	defs, err := LoadFile(path)
	if err == nil {
		return LoadResult{Schemas: defs, Source: SourceFile, Path: path}
	}
	if policy == Strict {
		return LoadResult{Path: path, Err: err}
	}
	return LoadResult{Schemas: fallback, Source: SourceFallback, Path: path, Err: err}
}
