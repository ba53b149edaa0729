// Package events fans device status updates out to observers such as SSE
// clients.
package events

import (
	"sync"

	"github.com/micro-nova/upm6720d/internal/models"
)

const subBufferSize = 8

// Bus is a non-blocking publish-subscribe event bus.
// Subscribers that are slow to consume events will have events dropped rather
// than blocking publishers.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan models.Status
	last *models.Status
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan models.Status),
	}
}

// Subscribe creates a new subscription with the given ID.
// The returned channel receives a status on every notification.
// Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id string) <-chan models.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.Status, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends a status update to all subscribers.
// If a subscriber's channel is full, the event is dropped (non-blocking).
func (b *Bus) Publish(st models.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = &st
	for _, ch := range b.subs {
		select {
		case ch <- st:
		default:
			// Drop if subscriber is slow
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Last returns the most recently published status.
func (b *Bus) Last() (models.Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return models.Status{}, false
	}
	return *b.last, true
}
