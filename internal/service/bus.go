package service

import (
	"encoding/json"
	"sync"
)

// Event is a render command for the browser map.
type Event struct {
	Name   string          // e.g. "map-set-data"
	Detail json.RawMessage // JSON payload, encoded at publish time
	// Key identifies the state the event carries. A pending event is
	// replaced by a newer one with the same key; empty keys never merge.
	Key string
}

// Subscription is one subscriber's queue of pending events. Each key holds
// at most one pending event, so a slow reader skips intermediate states
// but always receives the latest one.
type Subscription struct {
	ready chan struct{}

	mu      sync.Mutex
	pending []Event
	slot    map[string]int
}

// Ready is signalled when events are pending and closed on Unsubscribe.
func (s *Subscription) Ready() <-chan struct{} { return s.ready }

// Drain returns the pending events in publish order and empties the queue.
func (s *Subscription) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	clear(s.slot)
	return out
}

func (s *Subscription) push(e Event) {
	s.mu.Lock()
	if i, ok := s.slot[e.Key]; ok && e.Key != "" {
		s.pending[i] = e
	} else {
		if e.Key != "" {
			s.slot[e.Key] = len(s.pending)
		}
		s.pending = append(s.pending, e)
	}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
		// already signalled
	}
}

// EventBus is a fan-out pub/sub for render commands.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*Subscription]struct{})}
}

// Publish queues an event for all subscribers without blocking.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		sub.push(e)
	}
}

// Subscribe registers a new subscription.
func (b *EventBus) Subscribe() *Subscription {
	sub := &Subscription{
		ready: make(chan struct{}, 1),
		slot:  make(map[string]int),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its Ready channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	close(sub.ready)
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
