package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemMarshalJSON(t *testing.T) {
	draft := true
	item := Item{
		ID:     "0b7c",
		Fields: map[string]any{"title": "Hello", "views": 3.0},
		Meta:   Meta{CreatedAt: "2026-01-01T00:00:00.000Z", UpdatedAt: "2026-01-02T00:00:00.000Z", Draft: &draft},
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "0b7c", got["id"])
	assert.Equal(t, "Hello", got["title"])
	assert.Equal(t, 3.0, got["views"])
	assert.Equal(t, map[string]any{
		"createdAt": "2026-01-01T00:00:00.000Z",
		"updatedAt": "2026-01-02T00:00:00.000Z",
		"draft":     true,
	}, got["_meta"])
}

func TestSingletonMetaOmitsDraft(t *testing.T) {
	data, err := json.Marshal(&Item{ID: "s", Meta: Meta{CreatedAt: "a", UpdatedAt: "b"}})
	require.NoError(t, err)

	var got struct {
		Meta map[string]any `json:"_meta"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotContains(t, got.Meta, "draft")
}

func TestItemIsDraft(t *testing.T) {
	yes, no := true, false
	assert.True(t, (&Item{Meta: Meta{Draft: &yes}}).IsDraft())
	assert.False(t, (&Item{Meta: Meta{Draft: &no}}).IsDraft())
	assert.False(t, (&Item{}).IsDraft())
	var nilItem *Item
	assert.False(t, nilItem.IsDraft())
}
