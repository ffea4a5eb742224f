package notify

import (
	"time"

	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

// EventType names a change notification.
type EventType string

// Event types sent to the webhook.
const (
	EventUpdated EventType = "content.updated"
	EventDeleted EventType = "content.deleted"
)

// Event is the webhook payload for one content change.
type Event struct {
	Event     EventType `json:"event"`
	Schema    string    `json:"schema"`
	ID        string    `json:"id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// NewEvent builds the event for a mutation. Creates and updates are both
// reported as content.updated.
func NewEvent(action types.Action, schemaName, id string, now time.Time) Event {
	ev := Event{
		Event:     EventUpdated,
		Schema:    schemaName,
		ID:        id,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if action == types.ActionDelete {
		ev.Event = EventDeleted
	}
	return ev
}

// ShouldNotify reports whether a mutation is visible outside the CMS. Every
// singleton write is. A collection mutation is only when the item involved
// (the result of a create or update, or the row before a delete) is
// published.
func ShouldNotify(def *schema.Definition, action types.Action, item *types.Item) bool {
	if def.Kind == schema.KindSingleton {
		return true
	}
	switch action {
	case types.ActionCreate, types.ActionUpdate, types.ActionDelete:
		return item != nil && !item.IsDraft()
	default:
		return false
	}
}
