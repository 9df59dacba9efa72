// Package bus is the cross-context change channel: a small typed
// publish/subscribe primitive other store handles observe to reconcile
// after a local commit, instead of sharing memory.
package bus

import (
	"sync"
	"time"
)

// Action enumerates the change-notification kinds carried on the channel.
type Action string

const (
	ActionNewClient     Action = "new_client"
	ActionSyncClients   Action = "sync_clients"
	ActionClientUpdated Action = "client_updated"
	ActionClientDeleted Action = "client_deleted"
	ActionForceSync     Action = "force_sync"
	ActionConfigUpdate  Action = "config_update"
)

// Message is the fixed schema published after a successful local commit.
type Message struct {
	Action       Action    `json:"action"`
	Payload      any       `json:"payload,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	SourceDevice string    `json:"sourceDevice"`
}

// Bus fans messages out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the message and is expected to reconcile via
// the periodic sweep. Safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Message
	nextID int
	closed bool
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

// Subscribe registers a consumer with the given channel buffer. The
// returned cancel function removes the subscription and closes the channel;
// it is idempotent.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers msg to every subscriber without blocking.
func (b *Bus) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Close tears down the bus and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
