package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

func item(draft *bool) *types.Item {
	return &types.Item{ID: "0190", Meta: types.Meta{Draft: draft}}
}

func boolPtr(b bool) *bool { return &b }

func TestShouldNotify(t *testing.T) {
	settings := schema.Singleton("settings")
	post := schema.Collection("post")

	tests := []struct {
		name   string
		def    *schema.Definition
		action types.Action
		item   *types.Item
		want   bool
	}{
		{"singleton create", settings, types.ActionCreate, item(nil), true},
		{"singleton update", settings, types.ActionUpdate, item(nil), true},
		{"singleton without item", settings, types.ActionUpdate, nil, true},
		{"delete published", post, types.ActionDelete, item(boolPtr(false)), true},
		{"delete draft", post, types.ActionDelete, item(boolPtr(true)), false},
		{"publish draft", post, types.ActionUpdate, item(boolPtr(false)), true},
		{"create published", post, types.ActionCreate, item(boolPtr(false)), true},
		{"save draft", post, types.ActionUpdate, item(boolPtr(true)), false},
		{"create draft", post, types.ActionCreate, item(boolPtr(true)), false},
		{"collection without item", post, types.ActionDelete, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldNotify(tt.def, tt.action, tt.item))
		})
	}
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 14, 30, 0, 250e6, time.FixedZone("CEST", 2*3600))

	ev := NewEvent(types.ActionCreate, "post", "abc", now)
	assert.Equal(t, EventUpdated, ev.Event)
	assert.Equal(t, "2024-05-01T12:30:00.250Z", ev.Timestamp)

	ev = NewEvent(types.ActionDelete, "post", "abc", now)
	assert.Equal(t, EventDeleted, ev.Event)

	data, err := json.Marshal(NewEvent(types.ActionUpdate, "settings", "", now))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"content.updated","schema":"settings","timestamp":"2024-05-01T12:30:00.250Z"}`, string(data))
}
