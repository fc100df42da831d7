package worker

import (
	"github.com/okian/blueprints/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithShards sets the number of shards, each with its own queue and worker.
func WithShards(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.shardCount = n
		}
	}
}

// WithQueueSize sets the per-shard queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithDispatcherLogger sets the dispatcher logger, also handed to workers.
func WithDispatcherLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
