// Package bus is the in-memory analogue of the teacher's Redis pub/sub
// layer (internal/cache/pubsub.go): it fans a single stream of PoolEvent
// out to every subscriber, except it never leaves process memory and a
// slow subscriber is dropped from rather than blocking the publisher.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// DefaultSubscriberCapacity is the per-subscriber channel buffer. A
// subscriber that cannot keep up loses events rather than stalling the
// watcher goroutine that publishes them.
const DefaultSubscriberCapacity = 256

// Bus is a bounded, best-effort broadcast channel for alert.PoolEvent.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan alert.PoolEvent
	nextID int
	cap    int
	logger *logrus.Logger

	dropped atomic.Uint64
}

// New constructs a Bus. capacity <= 0 falls back to
// DefaultSubscriberCapacity.
func New(capacity int, logger *logrus.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultSubscriberCapacity
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		subs:   make(map[int]chan alert.PoolEvent),
		cap:    capacity,
		logger: logger,
	}
}

// Subscription is a live subscriber handle. Events arrive on C; call
// Close when done to release the subscriber slot.
type Subscription struct {
	C      <-chan alert.PoolEvent
	id     int
	bus    *Bus
	closed bool
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.bus.unsubscribe(s.id)
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan alert.PoolEvent, b.cap)
	b.subs[id] = ch

	return &Subscription{C: ch, id: id, bus: b}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish fans ev out to every current subscriber. A subscriber whose
// buffer is full is skipped for this event rather than blocking the
// caller; dropped events are counted and logged at debug level, never
// escalated to an error the watcher has to handle.
func (b *Bus) Publish(ev alert.PoolEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.WithFields(ev.LogFields()).WithField("subscriber", id).Debug("bus: dropping event, subscriber buffer full")
		}
	}
}

// SubscriberCount reports the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// DroppedCount reports the cumulative number of events dropped due to a
// full subscriber buffer, for metrics/logging.
func (b *Bus) DroppedCount() uint64 {
	return b.dropped.Load()
}
