// Package queue holds draw commands waiting to be applied.
//
// A queue is bounded. Enqueue rejects when full; EnqueueWait blocks the
// producer until there is room, so a busy room slows its senders down
// instead of losing their draws.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/pkg/metrics"
)

const defaultCapacity = 1024

// Event is the payload type flowing through the queue.
type Event = model.DrawEvent

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event. It returns ErrFull or ErrClosed instead of
	// blocking.
	Enqueue(ctx context.Context, e Event) error

	// EnqueueWait adds an event, waiting for room. It returns ErrClosed
	// if the queue is closed before the event is accepted, or ctx.Err().
	EnqueueWait(ctx context.Context, e Event) error

	// Dequeue returns the channel events are read from, in enqueue order.
	// It is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close stops accepting events. Queued events stay readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu      sync.RWMutex
	closed  bool
	closing chan struct{} // closed before events, wakes blocked producers
	once    sync.Once
}

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity, closing: make(chan struct{})}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)
	return q
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordDispatchEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordDispatchEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.events <- e:
		return nil
	default:
		return ErrFull
	}
}

// EnqueueWait adds an event to the queue, blocking while it is full.
func (q *InMemoryQueue) EnqueueWait(ctx context.Context, e Event) error {
	if err := q.Enqueue(ctx, e); !errors.Is(err, ErrFull) {
		return err
	}
	metrics.RecordDispatchBackpressure()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordDispatchEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	select {
	case q.events <- e:
		return nil
	case <-q.closing:
		metrics.RecordDispatchEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	case <-ctx.Done():
		metrics.RecordDispatchEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	}
}

// Dequeue returns the event channel. Each queue has exactly one consumer.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	return q.events
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.events)
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting events and closes the dequeue channel once the
// consumer has drained it.
func (q *InMemoryQueue) Close() error {
	// Producers blocked in EnqueueWait hold the read lock.
	q.once.Do(func() { close(q.closing) })

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
