package events

import (
	"sync"
	"time"
)

// Handler receives events from the bus. Handlers run on the bus's dispatch
// goroutine, one event at a time, in subscription order.
type Handler func(Event)

// Bus provides event distribution across components.
// Emit never drops events; it blocks when the buffer is full.
type Bus struct {
	Capacity int
	events   chan Event

	mu       sync.RWMutex
	handlers []Handler

	closeOnce sync.Once
	done      chan struct{}
}

// NewBus creates a new event bus with the specified capacity
func NewBus(capacity int) *Bus {
	b := &Bus{
		Capacity: capacity,
		events:   make(chan Event, capacity),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for all subsequent events
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit stamps the event time and queues it for dispatch
func (b *Bus) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.events <- e
}

// Close stops accepting events and waits until queued events are delivered
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		close(b.events)
	})
	<-b.done
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.events {
		b.mu.RLock()
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.mu.RUnlock()

		for _, h := range handlers {
			h(e)
		}
	}
}
