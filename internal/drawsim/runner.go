package drawsim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/pkg/logger"
)

// joinSettle gives the server time to register every join before drawing.
// Joins are not acknowledged by the protocol.
const joinSettle = 200 * time.Millisecond

// Run executes one simulation: create a blueprint, connect the sessions,
// draw from all of them concurrently and wait for convergence.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("drawsim")

	runID := uuid.NewString()[:8]
	if cfg.Author == "" {
		cfg.Author = "sim-" + runID
	}
	if cfg.Name == "" {
		cfg.Name = "plano-" + runID
	}
	stats := &Stats{Author: cfg.Author, Name: cfg.Name, Sessions: cfg.Sessions, StartTime: time.Now()}

	log.Info(ctx, "starting draw simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("blueprint", cfg.Author+"/"+cfg.Name),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("pointsPerSession", cfg.PointsPerSession),
	)

	if err := checkHealth(ctx, cfg); err != nil {
		return stats, err
	}

	rest := newRESTClient(cfg)
	if _, err := rest.create(ctx, cfg.Author, cfg.Name); err != nil {
		return stats, fmt.Errorf("create blueprint: %w", err)
	}
	if !cfg.Keep {
		defer func() {
			if err := rest.remove(context.WithoutCancel(ctx), cfg.Author, cfg.Name); err != nil {
				log.Warn(ctx, "failed to delete blueprint", logger.Error(err))
			}
		}()
	}

	roomName := model.RoomName(cfg.Author, cfg.Name)
	changed := make(chan struct{}, 1)
	sessions := make([]*clientSession, 0, cfg.Sessions)
	defer func() {
		for _, s := range sessions {
			s.close()
		}
	}()
	for i := 0; i < cfg.Sessions; i++ {
		s, err := dialSession(ctx, cfg, i, roomName, changed)
		if err != nil {
			return stats, err
		}
		sessions = append(sessions, s)
		if err := s.join(); err != nil {
			return stats, fmt.Errorf("session %d: join: %w", i, err)
		}
	}
	time.Sleep(joinSettle)

	stats.PointsSent, stats.DrawErrors = drawAll(ctx, cfg, sessions, log)

	expected, err := awaitConvergence(ctx, cfg, rest, sessions, changed)
	stats.StoredPoints = len(expected)
	for _, s := range sessions {
		last, updates, _ := s.snapshot()
		stats.UpdatesReceived += updates
		if pointsEqual(last, expected) {
			stats.Converged++
		}
	}
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	if err != nil {
		return stats, err
	}

	if err := verify(stats, sessions, expected); err != nil {
		return stats, err
	}
	log.Info(ctx, "simulation converged",
		logger.Int("storedPoints", stats.StoredPoints),
		logger.Int("updates", stats.UpdatesReceived),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// drawAll makes every session draw its points concurrently.
func drawAll(ctx context.Context, cfg *Config, sessions []*clientSession, log logger.Logger) (sent, failed int) {
	var okCount, errCount int64
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *clientSession) {
			defer wg.Done()
			for i := 0; i < cfg.PointsPerSession; i++ {
				if ctx.Err() != nil {
					return
				}
				p := model.Point{X: rand.IntN(defaultCanvasMax), Y: rand.IntN(defaultCanvasMax)}
				if err := s.draw(cfg.Author, cfg.Name, p); err != nil {
					atomic.AddInt64(&errCount, 1)
					if cfg.Verbose {
						log.Warn(ctx, "draw failed", logger.Int("session", s.id), logger.Error(err))
					}
					return
				}
				atomic.AddInt64(&okCount, 1)
				if cfg.Interval > 0 {
					time.Sleep(cfg.Interval)
				}
			}
		}(s)
	}
	wg.Wait()
	return int(okCount), int(errCount)
}

// awaitConvergence re-reads the stored blueprint whenever a session sees an
// update, until every session holds the stored sequence or cfg.Settle
// elapses.
func awaitConvergence(ctx context.Context, cfg *Config, rest *restClient, sessions []*clientSession, changed <-chan struct{}) ([]model.Point, error) {
	timeout := time.NewTimer(cfg.Settle)
	defer timeout.Stop()

	for {
		stored, err := rest.get(ctx, cfg.Author, cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("get blueprint: %w", err)
		}
		if allSeen(sessions, stored.Points) {
			return stored.Points, nil
		}
		select {
		case <-ctx.Done():
			return stored.Points, ctx.Err()
		case <-timeout.C:
			return stored.Points, nil
		case <-changed:
		}
	}
}

func allSeen(sessions []*clientSession, points []model.Point) bool {
	for _, s := range sessions {
		last, _, _ := s.snapshot()
		if !pointsEqual(last, points) {
			return false
		}
	}
	return true
}
