package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldops_backend/platform/logger"
)

// InMemoryBus is a process-local Bus. Handlers registered for an event
// name receive every published event of that name. Async handlers run in
// their own goroutine with a bounded timeout; a failing or panicking
// handler is logged and never affects the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	timeout  time.Duration
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
		timeout:  30 * time.Second,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish delivers the event to all handlers asynchronously. The caller's
// context is not reused: side effects should outlive the triggering request.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	for _, h := range b.snapshot(event.EventName()) {
		handler := h
		go func() {
			hctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()
			b.invoke(hctx, handler, event)
		}()
	}
}

// PublishSync delivers the event to all handlers in registration order and
// returns the joined handler errors, if any.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, handler := range b.snapshot(event.EventName()) {
		if err := b.invoke(ctx, handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryBus) snapshot(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	registered := b.handlers[eventName]
	out := make([]Handler, len(registered))
	copy(out, registered)
	return out
}

func (b *InMemoryBus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
			if b.log != nil {
				b.log.Error("event_handler_panic", "event", event.EventName(), "panic", fmt.Sprintf("%v", r))
			}
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		if b.log != nil {
			b.log.Warn("event_handler_error", "event", event.EventName(), "error", err.Error())
		}
		return err
	}
	return nil
}
