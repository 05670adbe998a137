// Package event provides an in-process publish/subscribe bus for clip
// change notifications.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topics published by the clip service.
const (
	TopicClipCreated = "clip.created"
	TopicClipUpdated = "clip.updated"
	TopicClipDeleted = "clip.deleted"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Handler receives events.
type Handler func(ctx context.Context, e Event)

// Publisher is the sending half of the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	PublishAsync(ctx context.Context, e Event)
}

// Compile-time interface guard.
var _ Publisher = (*Bus)(nil)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to topic subscribers and to catch-all subscribers.
// A panicking handler is logged and does not stop delivery to the others.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	all    []subscription
	nextID uint64
	logger *zap.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers h for events on topic. The returned func removes it.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.topics[topic] = remove(b.topics[topic], id)
	}
}

// SubscribeAll registers h for every event. The returned func removes it.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

// Publish delivers e to all matching handlers synchronously.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	for _, h := range b.handlers(e.Topic) {
		b.dispatch(ctx, h, e)
	}
	return nil
}

// PublishAsync delivers e to all matching handlers, each in its own goroutine.
func (b *Bus) PublishAsync(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	for _, h := range b.handlers(e.Topic) {
		go b.dispatch(ctx, h, e)
	}
}

func (b *Bus) handlers(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Handler, 0, len(b.topics[topic])+len(b.all))
	for _, s := range b.topics[topic] {
		out = append(out, s.handler)
	}
	for _, s := range b.all {
		out = append(out, s.handler)
	}
	return out
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", e.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, e)
}

func remove(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
