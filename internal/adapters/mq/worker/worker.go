// Package worker applies queued draw commands.
//
// Each worker owns exactly one queue, so commands that share a queue are
// applied one at a time and in enqueue order.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/blueprints/internal/adapters/mq/queue"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Applier appends a drawn point and publishes the result.
type Applier interface {
	ApplyDraw(ctx context.Context, ev Event) (bool, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events from a queue.
type Worker interface {
	// Run applies events until the queue is closed and drained or ctx is
	// canceled.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		applier: applier,
		name:    "worker",
		done:    make(chan struct{}),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, ev); err != nil {
				w.logger.Error(ctx, "error applying draw event", logger.Error(err))
			}
		}
	}
}

// Shutdown waits for the worker to finish. Close the queue first, or cancel
// the Run context, otherwise Shutdown only returns when ctx expires.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, ev Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if _, err := w.applier.ApplyDraw(ctx, ev); err != nil {
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply draw to %s/%s: %w", ev.Author, ev.Name, err)
	}
	return nil
}
