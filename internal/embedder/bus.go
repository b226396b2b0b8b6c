package embedder

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	buffer int
	closed bool
	logger *zap.Logger
}

// NewBus creates a bus whose subscribers buffer up to buffer events
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[string]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Publish delivers e to every subscriber
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for subID, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("Dropping event for slow subscriber",
				zap.String("subscriber", subID),
				zap.String("type", string(e.Type)))
		}
	}
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or Close.
func (b *Bus) Subscribe() (string, <-chan Event) {
	subID := uuid.NewString()
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return subID, ch
	}
	b.subs[subID] = ch
	return subID, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[subID]; ok {
		delete(b.subs, subID)
		close(ch)
	}
}

// Subscribers returns the subscriber count
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel; later publishes are dropped
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for subID, ch := range b.subs {
		delete(b.subs, subID)
		close(ch)
	}
}
