package pipeline

import (
	"sync"

	"github.com/google/uuid"

	"vehicle-telemetry/internal/metrics"
)

// Subscription is one listener's FIFO queue on a Broadcaster.
type Subscription[T any] struct {
	ID string
	C  <-chan T

	ch chan T
	b  *Broadcaster[T]
}

// Close detaches the subscription and closes C. Safe to call twice.
func (s *Subscription[T]) Close() {
	s.b.unsubscribe(s.ID)
}

// Broadcaster fans every published message out to all current subscribers.
// Publish never blocks: a subscriber whose queue is full misses the message
// and the miss is counted.
type Broadcaster[T any] struct {
	name       string
	bufferSize int

	mu     sync.RWMutex
	subs   map[string]*Subscription[T]
	closed bool
}

func NewBroadcaster[T any](name string, bufferSize int) *Broadcaster[T] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Broadcaster[T]{
		name:       name,
		bufferSize: bufferSize,
		subs:       make(map[string]*Subscription[T]),
	}
}

// Subscribe registers a new listener. On a closed broadcaster the returned
// subscription's channel is already closed.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	ch := make(chan T, b.bufferSize)
	sub := &Subscription[T]{ID: uuid.NewString(), C: ch, ch: ch, b: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.ID] = sub
	metrics.ChannelSubscribers.WithLabelValues(b.name).Set(float64(len(b.subs)))
	return sub
}

func (b *Broadcaster[T]) Publish(msg T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			metrics.ChannelDrops.WithLabelValues(b.name).Inc()
		}
	}
}

func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription; later publishes are no-ops.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	metrics.ChannelSubscribers.WithLabelValues(b.name).Set(0)
}

func (b *Broadcaster[T]) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
	metrics.ChannelSubscribers.WithLabelValues(b.name).Set(float64(len(b.subs)))
}
