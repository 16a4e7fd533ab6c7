package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
)

// DefaultBufferSize is the number of events a slow subscriber may lag behind
const DefaultBufferSize = 256

// ErrBusClosed is returned when publishing to a closed bus
var ErrBusClosed = errors.New("event bus closed")

// InMemoryEventBus implements EventBus with one delivery goroutine per
// subscriber, so each subscriber sees events in publish order.
type InMemoryEventBus struct {
	bufferSize  int
	subscribers map[string]map[uint64]*subscription
	nextID      uint64
	closed      bool
	mu          sync.RWMutex
}

type subscription struct {
	events chan domain.StatusEvent
	stop   chan struct{}
	once   sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.stop) })
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return NewInMemoryEventBusWithBuffer(DefaultBufferSize)
}

// NewInMemoryEventBusWithBuffer creates a bus with a custom per-subscriber buffer
func NewInMemoryEventBusWithBuffer(size int) *InMemoryEventBus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &InMemoryEventBus{
		bufferSize:  size,
		subscribers: make(map[string]map[uint64]*subscription),
	}
}

// Publish queues an event for every subscriber of a topic. It blocks while a
// subscriber's buffer is full, until ctx ends.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.StatusEvent) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*subscription, 0, len(e.subscribers[topic]))
	for _, sub := range e.subscribers[topic] {
		subs = append(subs, sub)
	}
	e.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.events <- event:
		case <-sub.stop:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Subscribe registers handler for a topic until ctx is cancelled
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrBusClosed
	}

	e.nextID++
	id := e.nextID
	sub := &subscription{
		events: make(chan domain.StatusEvent, e.bufferSize),
		stop:   make(chan struct{}),
	}
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]*subscription)
	}
	e.subscribers[topic][id] = sub
	e.mu.Unlock()

	go e.deliver(ctx, topic, id, sub, handler)

	return nil
}

// deliver hands queued events to the handler one at a time
func (e *InMemoryEventBus) deliver(ctx context.Context, topic string, id uint64, sub *subscription, handler ports.EventHandler) {
	defer e.remove(topic, id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stop:
			return
		case event := <-sub.events:
			// Handler errors belong to the subscriber
			_ = handler(ctx, event)
		}
	}
}

// Unsubscribe removes all subscriptions from a topic
func (e *InMemoryEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subscribers[topic] {
		sub.close()
	}
	delete(e.subscribers, topic)
	return nil
}

// Close stops every subscription and rejects further use
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for _, subs := range e.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	e.subscribers = make(map[string]map[uint64]*subscription)
	return nil
}

// SubscriberCount returns the number of live subscriptions on a topic
func (e *InMemoryEventBus) SubscriberCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[topic])
}

func (e *InMemoryEventBus) remove(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sub, ok := e.subscribers[topic][id]; ok {
		sub.close()
		delete(e.subscribers[topic], id)
		if len(e.subscribers[topic]) == 0 {
			delete(e.subscribers, topic)
		}
	}
}
