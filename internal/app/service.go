// Package service wires the blueprint store, room directory, broadcast
// engine, draw dispatcher and websocket handler into one runnable unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/blueprints/internal/adapters/mq/worker"
	"github.com/okian/blueprints/internal/adapters/repository"
	"github.com/okian/blueprints/internal/adapters/ws"
	"github.com/okian/blueprints/internal/domain/broadcast"
	"github.com/okian/blueprints/internal/domain/protocol"
	"github.com/okian/blueprints/internal/domain/room"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

// ErrNotStarted is returned by accessors used before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.MemoryStore
	rooms      *room.Directory
	engine     *broadcast.Engine
	sync       *protocol.Sync
	dispatcher *worker.Dispatcher
	wsHandler  *ws.Handler

	// Configuration
	shardCount      int
	queueSize       int
	sendBuffer      int
	writeTimeout    time.Duration
	pongTimeout     time.Duration
	maxMessageBytes int64
	allowedOrigin   string
	seedDemoData    bool

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDispatchShards sets the number of ordered draw-event shards.
func WithDispatchShards(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithDispatchQueueSize sets the per-shard queue capacity.
func WithDispatchQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithSessionSendBuffer sets the per-session outbound buffer.
func WithSessionSendBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithWebsocketTimeouts sets the frame write timeout and the pong timeout.
func WithWebsocketTimeouts(write, pong time.Duration) Option {
	return func(s *Service) {
		if write > 0 {
			s.writeTimeout = write
		}
		if pong > 0 {
			s.pongTimeout = pong
		}
	}
}

// WithMaxMessageBytes caps inbound websocket messages.
func WithMaxMessageBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMessageBytes = n
		}
	}
}

// WithAllowedOrigin sets the websocket origin check.
func WithAllowedOrigin(origin string) Option {
	return func(s *Service) {
		if origin != "" {
			s.allowedOrigin = origin
		}
	}
}

// WithDemoData seeds the store with the demo blueprints on Start.
func WithDemoData(enabled bool) Option {
	return func(s *Service) {
		s.seedDemoData = enabled
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		shardCount:      runtime.NumCPU(),
		queueSize:       1024,
		sendBuffer:      64,
		writeTimeout:    10 * time.Second,
		pongTimeout:     60 * time.Second,
		maxMessageBytes: 64 << 10,
		allowedOrigin:   "*",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the components. The components outlive ctx; call
// Stop to release them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting blueprints service...")

	var storeOpts []repository.Option
	if s.seedDemoData {
		storeOpts = append(storeOpts, repository.WithSeed(repository.DemoSeed()...))
	}
	s.store = repository.NewMemoryStore(ctx, storeOpts...)
	s.rooms = room.NewDirectory()
	s.engine = broadcast.NewEngine(s.rooms, broadcast.WithLogger(s.logger.Named("broadcast")))
	s.sync = protocol.NewSync(s.store, s.rooms, s.engine, func(err error) bool {
		return errors.Is(err, repository.ErrNotFound)
	}, s.logger.Named("protocol"))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.dispatcher = worker.NewDispatcher(s.sync,
		worker.WithShards(s.shardCount),
		worker.WithQueueSize(s.queueSize),
		worker.WithDispatcherLogger(s.logger.Named("dispatcher")),
	)
	s.dispatcher.Start(runCtx)

	s.wsHandler = ws.NewHandler(s.sync, s.dispatcher,
		ws.WithAllowedOrigin(s.allowedOrigin),
		ws.WithSendBuffer(s.sendBuffer),
		ws.WithWriteTimeout(s.writeTimeout),
		ws.WithPongTimeout(s.pongTimeout),
		ws.WithMaxMessageBytes(s.maxMessageBytes),
		ws.WithLogger(s.logger.Named("ws")),
	)

	s.started = true
	s.logger.Info(ctx, "blueprints service started",
		logger.Int("shards", s.shardCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("blueprints", s.store.Count(ctx)),
		logger.Bool("demoData", s.seedDemoData),
	)
	return nil
}

// Stop closes every session, drains the dispatcher and releases the
// workers. Stored blueprints are discarded with the process.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping blueprints service...")

	var errs []error
	if err := s.wsHandler.CloseAll(ctx); err != nil && !errors.Is(err, ws.ErrClosed) {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown dispatcher: %w", err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "blueprints service stopped")
	return errors.Join(errs...)
}

// Store returns the blueprint store.
func (s *Service) Store() (*repository.MemoryStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// WebsocketHandler returns the realtime endpoint handler.
func (s *Service) WebsocketHandler() (*ws.Handler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.wsHandler, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":   s.started,
		"shards":    s.shardCount,
		"queueSize": s.queueSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	blueprints := s.store.Count(ctx)
	authors := len(s.store.Authors(ctx))
	queueLen := s.dispatcher.Len(ctx)
	rooms := s.rooms.RoomCount()

	stats["blueprints"] = blueprints
	stats["authors"] = authors
	stats["rooms"] = rooms
	stats["sessions"] = s.wsHandler.SessionCount()
	stats["queueLength"] = queueLen

	metrics.UpdateStoreSize(blueprints, authors)
	metrics.UpdateRoomsActive(rooms)
	metrics.UpdateDispatchQueueSize(queueLen)
	return stats
}
