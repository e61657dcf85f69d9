// Package events defines the bus contract that carries workflow events from
// the intervention engine to its subscribers, chiefly the notification
// fan-out. The concrete event types live with the domain packages that
// publish them; this layer only knows names, timestamps and handlers.
package events

import (
	"context"
	"time"
)

// Event is anything that can be published on the bus.
type Event interface {
	// EventName identifies the event type for subscription routing.
	EventName() string
	// OccurredAt is the publication timestamp.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp every event shares. Domain events embed it
// and add their own payload fields.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a fresh event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one registered name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus connects publishers to subscribers without either knowing the other.
type Bus interface {
	// Publish dispatches the event to its subscribers without waiting for
	// them. A transition's caller never blocks on notification delivery.
	Publish(ctx context.Context, event Event)

	// PublishSync dispatches the event and waits for every handler, joining
	// their errors. The scheduler worker uses it so a failed delivery
	// surfaces as a retryable task error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the name the matching
	// Event.EventName returns.
	Subscribe(eventName string, handler Handler)
}
