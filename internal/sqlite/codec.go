package sqlite

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

// fieldCodec converts one field type between caller values and stored values.
type fieldCodec struct {
	encode func(v any) (any, error)
	decode func(c *Codec, f *schema.FieldDefinition, raw any, depth int) any
}

var (
	textCodec       = fieldCodec{encode: encodeText, decode: decodeText}
	structuredCodec = fieldCodec{encode: encodeJSON, decode: decodeJSON}
)

// codecs is the per-type dispatch table. Every schema.FieldType has an entry.
var codecs = map[schema.FieldType]fieldCodec{
	schema.FieldString:   textCodec,
	schema.FieldText:     textCodec,
	schema.FieldSlug:     textCodec,
	schema.FieldSelect:   textCodec,
	schema.FieldDatetime: {encode: encodeDatetime, decode: decodeText},
	schema.FieldImage:    {encode: encodeText, decode: decodeImage},
	schema.FieldRichtext: {encode: encodeText, decode: decodeRichtext},
	schema.FieldNumber:   {encode: encodeNumber, decode: decodeNumber},
	schema.FieldBoolean:  {encode: encodeBool, decode: decodeBool},
	schema.FieldBlocks:   structuredCodec,
	schema.FieldBlock:    structuredCodec,
	schema.FieldLink:     structuredCodec,
}

// Codec encodes field values for storage and decodes stored values for
// callers. With a public URL set, image values and richtext <img> sources are
// rewritten to absolute URLs on read.
type Codec struct {
	publicURL string
}

// NewCodec creates a codec. An empty publicURL disables URL rewriting.
func NewCodec(publicURL string) *Codec {
	return &Codec{publicURL: publicURL}
}

// Encode converts a caller value into its stored form.
func (c *Codec) Encode(f *schema.FieldDefinition, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	fc, ok := codecs[f.Type]
	if !ok {
		return nil, fmt.Errorf("%w: field %q: unknown type %q", types.ErrInvalidValue, f.Name, f.Type)
	}
	out, err := fc.encode(v)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", types.ErrInvalidValue, f.Name, err)
	}
	return out, nil
}

// Decode converts a stored value into its caller form. Decoding never fails:
// structured values that are not valid JSON come back as the raw text.
func (c *Codec) Decode(f *schema.FieldDefinition, raw any) any {
	return c.decode(f, raw, 0)
}

func (c *Codec) decode(f *schema.FieldDefinition, raw any, depth int) any {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return nil
	}
	fc, ok := codecs[f.Type]
	if !ok {
		return raw
	}
	return fc.decode(c, f, raw, depth)
}

// PublicURL rewrites a media path against the codec's public URL.
func (c *Codec) PublicURL(path string) string {
	return ToPublicURL(c.publicURL, path)
}

// ToPublicURL joins a relative path onto base. Absolute http(s) URLs, and any
// path when base is empty, are returned unchanged.
func ToPublicURL(base, path string) string {
	if base == "" || path == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(base, "/") + path
}

// imgSrc matches the src attribute of an <img> tag.
var imgSrc = regexp.MustCompile(`(?i)(<img\b[^>]*?\bsrc\s*=\s*)(["'])([^"']*)(["'])`)

// RewriteHTML rewrites every <img> src in an HTML fragment.
func (c *Codec) RewriteHTML(html string) string {
	if c.publicURL == "" || !strings.Contains(strings.ToLower(html), "<img") {
		return html
	}
	return imgSrc.ReplaceAllStringFunc(html, func(tag string) string {
		m := imgSrc.FindStringSubmatch(tag)
		return m[1] + m[2] + c.PublicURL(m[3]) + m[4]
	})
}

func encodeText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool, int, int64, float64:
		return fmt.Sprint(x), nil
	case time.Time:
		return formatTime(x), nil
	default:
		return nil, fmt.Errorf("expected text, got %T", v)
	}
}

func encodeDatetime(v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		return formatTime(t), nil
	}
	return encodeText(v)
}

func encodeNumber(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected number, got %T", v)
	}
}

func encodeBool(v any) (any, error) {
	b, err := toBool(v)
	if err != nil {
		return nil, err
	}
	if b {
		return int64(1), nil
	}
	return int64(0), nil
}

// toBool accepts booleans, 0/1 numbers and their string forms.
func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("expected boolean, got %q", x)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func encodeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeText(_ *Codec, _ *schema.FieldDefinition, raw any, _ int) any {
	return raw
}

func decodeImage(c *Codec, _ *schema.FieldDefinition, raw any, _ int) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	return c.PublicURL(s)
}

func decodeRichtext(c *Codec, _ *schema.FieldDefinition, raw any, _ int) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	return c.RewriteHTML(s)
}

func decodeNumber(_ *Codec, _ *schema.FieldDefinition, raw any, _ int) any {
	switch x := raw.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		if n, err := strconv.ParseFloat(x, 64); err == nil {
			return n
		}
	}
	return raw
}

func decodeBool(_ *Codec, _ *schema.FieldDefinition, raw any, _ int) any {
	b, err := toBool(raw)
	if err != nil {
		return raw
	}
	return b
}

func decodeJSON(c *Codec, f *schema.FieldDefinition, raw any, depth int) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	if c.publicURL != "" {
		c.rewriteNested(f, v, depth)
	}
	return v
}

// rewriteNested rewrites image and richtext values inside decoded block data
// in place. Blocks in a blocks list are matched to definitions by _type.
func (c *Codec) rewriteNested(f *schema.FieldDefinition, v any, depth int) {
	if depth >= schema.MaxBlockDepth {
		return
	}
	switch f.Type {
	case schema.FieldBlock:
		if m, ok := v.(map[string]any); ok && f.Block != nil {
			c.rewriteBlock(f.Block, m, depth+1)
		}
	case schema.FieldBlocks:
		list, ok := v.([]any)
		if !ok {
			return
		}
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["_type"].(string)
			for _, b := range f.Blocks {
				if b.Name == name {
					c.rewriteBlock(b, m, depth+1)
					break
				}
			}
		}
	}
}

func (c *Codec) rewriteBlock(def *schema.Definition, m map[string]any, depth int) {
	for i := range def.Fields {
		f := &def.Fields[i]
		val, ok := m[f.Name]
		if !ok || val == nil {
			continue
		}
		switch f.Type {
		case schema.FieldImage:
			if s, ok := val.(string); ok {
				m[f.Name] = c.PublicURL(s)
			}
		case schema.FieldRichtext:
			if s, ok := val.(string); ok {
				m[f.Name] = c.RewriteHTML(s)
			}
		case schema.FieldBlock, schema.FieldBlocks:
			c.rewriteNested(f, val, depth)
		}
	}
}

// encodeDraft converts a caller's draft value to the stored 0/1 flag.
func encodeDraft(v any) (int64, error) {
	b, err := toBool(v)
	if err != nil {
		return 0, fmt.Errorf("%w: draft: %v", types.ErrInvalidValue, err)
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

// decodeDraft reads the stored draft flag. NULL reads as published.
func decodeDraft(raw any) bool {
	if raw == nil {
		return false
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	b, err := toBool(raw)
	return err == nil && b
}

// timeLayout is ISO 8601 with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
