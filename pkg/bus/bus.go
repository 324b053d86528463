package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// Handler processes one event. Handlers run synchronously on the
// publisher's goroutine; a handler error or panic is isolated and
// logged so sibling subscribers still receive the event.
type Handler func(ctx context.Context, event *types.Event) error

type subscription struct {
	id      string
	handler Handler
}

// Bus is a typed in-process publish/subscribe fabric. Subscribers
// register per event type; publish delivers to all subscribers for
// that type in registration order. Delivery is in-process only, with
// no persistence.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[types.EventType][]subscription
	logger      zerolog.Logger
}

// New creates an empty event bus
func New() *Bus {
	return &Bus{
		subscribers: make(map[types.EventType][]subscription),
		logger:      log.WithComponent("bus"),
	}
}

// Subscribe registers handler for eventType and returns the
// subscription id used to unsubscribe
func (b *Bus) Subscribe(eventType types.EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{
		id:      id,
		handler: handler,
	})
	return id
}

// Unsubscribe removes the subscription id from eventType. Unknown ids
// are ignored.
func (b *Bus) Unsubscribe(eventType types.EventType, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every subscriber registered for its type,
// in registration order. The event id and timestamp are stamped when
// unset. Publish returns after the last handler finishes.
func (b *Bus) Publish(ctx context.Context, event *types.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	for _, s := range subs {
		b.deliver(ctx, s, event)
	}
}

// deliver runs one handler with error and panic isolation
func (b *Bus) deliver(ctx context.Context, s subscription, event *types.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BusHandlerErrors.Inc()
			b.logger.Error().
				Str("event_type", string(event.Type)).
				Str("subscription", s.id).
				Interface("panic", r).
				Msg("Subscriber panicked")
		}
	}()

	if err := s.handler(ctx, event); err != nil {
		metrics.BusHandlerErrors.Inc()
		b.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("subscription", s.id).
			Msg("Subscriber failed")
	}
}

// SubscriberCount returns the number of subscribers for eventType
func (b *Bus) SubscriberCount(eventType types.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}
