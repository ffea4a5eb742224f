package types

import "encoding/json"

// Meta carries engine-managed row attributes. Draft is nil for singletons,
// which have no draft lifecycle.
type Meta struct {
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Draft     *bool  `json:"draft,omitempty"`
}

// Item is one stored row rendered for callers: the id and decoded field
// values at the top level, engine attributes under _meta.
type Item struct {
	ID     string
	Fields map[string]any
	Meta   Meta
}

// IsDraft reports whether the item is an unpublished collection item.
func (i *Item) IsDraft() bool {
	return i != nil && i.Meta.Draft != nil && *i.Meta.Draft
}

// Values returns the field values with the id included, as used for labels.
func (i *Item) Values() map[string]any {
	out := make(map[string]any, len(i.Fields)+1)
	for k, v := range i.Fields {
		out[k] = v
	}
	out["id"] = i.ID
	return out
}

// MarshalJSON renders the item as {"id": ..., <fields>..., "_meta": {...}}.
// The id and _meta keys win over fields of the same name; schema
// validation reserves both names.
func (i Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Fields)+2)
	for k, v := range i.Fields {
		out[k] = v
	}
	out["id"] = i.ID
	out["_meta"] = i.Meta
	return json.Marshal(out)
}

// Action is a content mutation kind.
type Action string

// Content mutation kinds.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
