// Package events provides the in-process event bus the modules use for
// decoupled side effects. Domain event types live with the modules that
// publish them; this package only carries the bus machinery.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName returns a stable identifier for the event type, used as
	// the subscription key.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent carries the fields shared by all events. Embed it and add
// the event's own payload.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a single type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish delivers the event to every handler registered for its
	// name. Delivery is asynchronous; publish never blocks the caller
	// and handler failures never propagate back.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event in registration order and returns
	// the joined handler errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the name returned by the
	// event's EventName.
	Subscribe(eventName string, handler Handler)
}
