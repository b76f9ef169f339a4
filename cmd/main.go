package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/affinity/internal/adapters/http/api"
	"github.com/okian/affinity/internal/adapters/http/swagger"
	"github.com/okian/affinity/internal/adapters/repository"
	service "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/config"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeSlack                = 5 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	dataDirPerm               = 0o750
)

func main() {
	// Custom system metrics replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()

	if err != nil {
		logger.Get().Error(ctx, "affinity exited", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run wires configuration, store, service and HTTP server, and blocks until
// ctx is cancelled or the listener fails.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.LogFormat == "console" {
		if err := logger.Init(logger.WithConsole(true)); err != nil {
			return fmt.Errorf("init console logging: %w", err)
		}
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := service.New(
		service.WithStore(store),
		service.WithCatalog(catalog),
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithAsyncRecompute(cfg.AsyncRecompute),
	)
	if err := svc.Start(ctx); err != nil {
		_ = svc.Stop(context.Background())
		return fmt.Errorf("start service: %w", err)
	}

	srv := newHTTPServer(cfg, newRouter(ctx, cfg, svc, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		if serr := svc.Stop(shutdownCtx); serr != nil {
			log.Error(shutdownCtx, "service stop failed", logger.Error(serr))
		}
		log.Info(shutdownCtx, "server stopped")
		return nil
	})
	return g.Wait()
}

// openStore opens the configured backend behind a circuit breaker.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	var next repository.Store
	switch cfg.Store {
	case config.StoreMemory:
		next = repository.NewMemoryStore()
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := os.MkdirAll(dir, dataDirPerm); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := repository.OpenSQLite(ctx, cfg.DBPath, repository.WithSQLiteLogger(log.Named("sqlite")))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		next = db
	}

	return repository.NewBreakerStore(next,
		repository.WithBreakerName(cfg.Store),
		repository.WithMaxFailures(cfg.BreakerMaxFailures),
		repository.WithOpenTimeout(cfg.BreakerTimeout),
		repository.WithBreakerLogger(log.Named("breaker")),
	), nil
}

// newRouter mounts the business API and the docs on one chi router.
func newRouter(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) http.Handler {
	r := api.NewServer(svc,
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow),
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithLogger(log.Named("http")),
	).Router()
	swagger.Register(ctx, r)
	return r
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RequestTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
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

// startServiceMetricsUpdater updates pipeline gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
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

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	queueLen, _ := stats["queueLength"].(int)
	queueCap, _ := stats["queueCapacity"].(int)
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateQueueCapacity(queueCap)
	if queueCap > 0 {
		metrics.UpdateQueueUtilization(float64(queueLen) / float64(queueCap))
	}

	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
