package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/blueprints/internal/adapters/discovery"
	"github.com/okian/blueprints/internal/adapters/http/api"
	"github.com/okian/blueprints/internal/adapters/http/swagger"
	app "github.com/okian/blueprints/internal/app"
	"github.com/okian/blueprints/internal/config"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout      = 5 * time.Second
	idleTimeout            = 60 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "blueprints server failed", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context) error {
	// defaults -> optional file -> env -> PORT
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.InitWithWriter(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Get()

	svc := app.New(
		app.WithLogger(log),
		app.WithDispatchShards(cfg.DispatchShards),
		app.WithDispatchQueueSize(cfg.DispatchQueueSize),
		app.WithSessionSendBuffer(cfg.SessionSendBuffer),
		app.WithWebsocketTimeouts(cfg.WSWriteTimeout(), cfg.WSPongTimeout()),
		app.WithMaxMessageBytes(cfg.WSMaxMessageBytes),
		app.WithAllowedOrigin(cfg.AllowedOrigin),
		app.WithDemoData(cfg.SeedDemoData),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	handler, err := buildHandler(ctx, cfg, svc)
	if err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	if cfg.MDNSAdvertise {
		port := ln.Addr().(*net.TCPAddr).Port
		adv, err := discovery.Advertise(ctx, cfg.MDNSInstance, port, log.Named("discovery"))
		if err != nil {
			log.Warn(ctx, "mDNS advertisement disabled", logger.Error(err))
		} else {
			defer func() { _ = adv.Shutdown(context.WithoutCancel(ctx)) }()
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", ln.Addr().String()),
			logger.String("allowed_origin", cfg.AllowedOrigin),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = svc.Stop(context.Background())
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; the
	// service closes them.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildHandler registers every route on one mux behind CORS.
func buildHandler(ctx context.Context, cfg *config.Config, svc *app.Service) (http.Handler, error) {
	store, err := svc.Store()
	if err != nil {
		return nil, err
	}
	wsHandler, err := svc.WebsocketHandler()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	blueprints := api.NewBlueprintsHandler(store, logger.Get().Named("api"))
	apiServer := api.NewServer(cfg.APIPrefix, blueprints, svc)
	apiServer.Register(ctx, mux)

	mux.Handle("GET /ws", wsHandler)

	return api.CORSMiddleware(mux, cfg.AllowedOrigin), nil
}

// startSystemMetricsUpdater periodically records memory and goroutines.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the gauges GetStats maintains.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
