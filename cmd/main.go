package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/medscribe/internal/adapters/http/api"
	"github.com/okian/medscribe/internal/adapters/http/swagger"
	"github.com/okian/medscribe/internal/adapters/stt"
	app "github.com/okian/medscribe/internal/app"
	"github.com/okian/medscribe/internal/config"
	"github.com/okian/medscribe/pkg/logger"
	"github.com/okian/medscribe/pkg/metrics"
)

// HTTP server timeout constants.
const (
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		// logger may not be available yet
		os.Stderr.WriteString("medscribe: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	transcriber, err := stt.New(cfg)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.TranscribeWorkers),
		app.WithQueueSize(cfg.TranscribeQueueSize),
		app.WithSpoolDir(cfg.SpoolDir),
		app.WithMaxUploadBytes(cfg.MaxUploadBytes),
		app.WithTranscriber(transcriber),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("stt_backend", transcriber.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service stop failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newHTTPServer builds the server with every route and the middleware chain.
func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, cfg.MaxUploadBytes,
		api.WithTranscribeTimeout(cfg.TranscribeTimeout),
	).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Chain(mux, cfg.CORSAllowedOrigins, api.WithTrustedProxyHeaders(cfg.TrustProxyHeaders)),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
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

// startServiceMetricsUpdater refreshes queue gauges between requests.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
