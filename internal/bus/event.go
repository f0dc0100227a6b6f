// Package bus is the same-device replication channel between tabs.
//
// Every running tab joins one named pub/sub channel and exchanges typed
// events. Delivery is at-most-once with no ordering guarantee across
// publishers and no replay: a tab that joins after an event was published
// never sees it except through the state-sync handshake.
package bus

import (
	"context"
	"encoding/json"
)

// EventType enumerates the events a tab may publish.
type EventType string

const (
	EventRequestState     EventType = "REQUEST_STATE"
	EventSyncState        EventType = "SYNC_STATE"
	EventNewMessage       EventType = "NEW_MESSAGE"
	EventNewDocument      EventType = "NEW_DOCUMENT"
	EventNewSuggestion    EventType = "NEW_SUGGESTION"
	EventUpdateSuggestion EventType = "UPDATE_SUGGESTION"
	EventSetRoomURL       EventType = "SET_ROOM_URL"
)

// Event is the wire envelope. Sender carries the publishing tab's identity
// so a tab can drop its own events; the underlying channel delivers to
// every subscriber including the publisher.
type Event struct {
	Type    EventType       `json:"type"`
	Sender  string          `json:"sender"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler is invoked once per received event in arrival order.
type Handler func(Event)

// Bus is the publish/subscribe contract the collaboration store depends on.
type Bus interface {
	// Publish sends a typed event to all other tabs on the channel.
	// The publisher never observes its own event.
	Publish(ctx context.Context, typ EventType, payload any) error
	// Subscribe registers a handler for inbound events.
	Subscribe(h Handler)
	Close() error
}
