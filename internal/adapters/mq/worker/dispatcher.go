package worker

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/blueprints/internal/adapters/mq/queue"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

const (
	defaultQueueSize      = 1024
	metricsUpdateInterval = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
)

type shard struct {
	queue  *queue.InMemoryQueue
	worker *InMemoryWorker
}

// Dispatcher routes draw events to a fixed set of shards by room. Every
// event for a room lands on the same shard and is applied by that shard's
// single worker, so a room sees its draws applied and published in arrival
// order while unrelated rooms proceed in parallel.
type Dispatcher struct {
	shards     []shard
	shardCount int
	queueSize  int
	applier    Applier

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher applying events with applier.
func NewDispatcher(applier Applier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		shardCount: runtime.NumCPU(),
		queueSize:  defaultQueueSize,
		applier:    applier,
		stop:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.shards = make([]shard, d.shardCount)
	for i := range d.shards {
		q := queue.NewInMemoryQueue(queue.WithCapacity(d.queueSize))
		d.shards[i] = shard{
			queue: q,
			worker: NewInMemoryWorker(q, applier,
				WithName("shard-"+strconv.Itoa(i)),
				WithLogger(d.logger),
			),
		}
	}
	metrics.UpdateDispatchQueueSize(0)
	return d
}

// Start launches one worker per shard. It is a no-op after the first call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.started.Store(true)
		for _, s := range d.shards {
			go s.worker.Run(ctx)
		}
		go d.reportQueueSize(ctx)
		d.logger.Info(ctx, "dispatcher started",
			logger.Int("shards", len(d.shards)),
			logger.Int("queue_size", d.queueSize),
		)
	})
}

// Submit queues ev on the shard owning ev.Room, waiting while that shard is
// full. It returns queue.ErrClosed once the dispatcher shuts down, or
// ctx.Err() if the caller gives up first.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	return d.shards[d.ShardFor(ev.Room)].queue.EnqueueWait(ctx, ev)
}

// ShardFor returns the shard index for room.
func (d *Dispatcher) ShardFor(room string) int {
	return int(xxhash.Sum64String(room) % uint64(len(d.shards)))
}

// Shards returns the number of shards.
func (d *Dispatcher) Shards() int {
	return len(d.shards)
}

// Len returns the number of queued events across all shards.
func (d *Dispatcher) Len(ctx context.Context) int {
	total := 0
	for _, s := range d.shards {
		total += s.queue.Len(ctx)
	}
	return total
}

func (d *Dispatcher) reportQueueSize(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			metrics.UpdateDispatchQueueSize(d.Len(ctx))
		}
	}
}

// Shutdown closes every shard queue and waits for the workers to drain
// what was already accepted.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stop)
		for _, s := range d.shards {
			_ = s.queue.Close()
		}
	})
	if !d.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var firstErr error
	for i, s := range d.shards {
		if err := s.worker.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn(ctx, "shard shutdown timed out", logger.Int("shard", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateDispatchQueueSize(0)
	return firstErr
}
