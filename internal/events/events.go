// Package events broadcasts aggregate changes to in-process subscribers.
package events

import (
	"sync"
	"time"

	"notification-engine/internal/common/logger"
)

type Type string

const (
	TypeRefreshed     Type = "refreshed"
	TypeMarkedRead    Type = "marked_read"
	TypeAllRead       Type = "all_read"
	TypeDeleted       Type = "deleted"
	TypeLoadFailed    Type = "load_failed"
	TypeIdentityReset Type = "identity_reset"
)

// AggregateChanged is published after every pass and every mutation.
type AggregateChanged struct {
	Type           Type      `json:"type"`
	UserID         string    `json:"userId"`
	NotificationID string    `json:"notificationId,omitempty"`
	Total          int       `json:"total"`
	Unread         int       `json:"unread"`
	LoadFailed     bool      `json:"loadFailed"`
	At             time.Time `json:"at"`
}

// Publisher is what the aggregator depends on.
type Publisher interface {
	Publish(e AggregateChanged)
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan AggregateChanged]struct{}
	logger logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[chan AggregateChanged]struct{}),
		logger: logger.Component(log, "event-bus"),
	}
}

// Subscribe registers a buffered channel. The returned func unsubscribes and
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan AggregateChanged, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan AggregateChanged, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(e AggregateChanged) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("subscriber buffer full, dropping event", map[string]interface{}{
				"type":   e.Type,
				"userId": e.UserID,
			})
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
