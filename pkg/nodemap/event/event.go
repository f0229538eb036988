// Package event provides in-process pub/sub for nodemap state changes.
//
// A LocalBus fans every published Event out to the subscriptions whose type
// filter matches. Each subscription is drained by its own goroutine, so
// handlers never run on the publisher's goroutine.
//
//	bus := event.NewBus(event.BusConfig{NonBlocking: true})
//	defer bus.Close()
//
//	sub := bus.Subscribe([]string{"nodemap.graph.saved"}, func(ctx context.Context, evt event.Event) error {
//	    log.Printf("saved %v", evt.Payload)
//	    return nil
//	})
//	defer sub.Unsubscribe()
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one immutable notification.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New creates an event with a fresh UUID and the current time.
func New(eventType, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// PayloadBytes returns the JSON encoding of the payload.
func (e Event) PayloadBytes() ([]byte, error) {
	return json.Marshal(e.Payload)
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, evt Event) error
