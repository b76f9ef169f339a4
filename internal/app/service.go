// Package service orchestrates sessions, game events and the affinity
// pipeline behind the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/affinity/internal/adapters/mq/queue"
	workerpool "github.com/okian/affinity/internal/adapters/mq/worker"
	repository "github.com/okian/affinity/internal/adapters/repository"
	"github.com/okian/affinity/internal/domain/dedupe"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

const (
	defaultQueueSize  = 1024
	defaultDedupeSize = 50000
)

// Service implements the API dependencies of the affinity platform.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	catalog *model.Catalog
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool
	now     func() time.Time

	workerCount    int
	queueSize      int
	dedupeSize     int
	asyncRecompute bool

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCatalog sets the game catalog. Defaults to model.DefaultCatalog.
func WithCatalog(c *model.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithClock replaces time.Now for event and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWorkerCount sets the number of recompute workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recompute queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the client event id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithAsyncRecompute toggles snapshot refresh after every completion.
func WithAsyncRecompute(enabled bool) Option {
	return func(s *Service) {
		s.asyncRecompute = enabled
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

// New constructs a Service. Synchronous operations work right away; Start
// launches the recompute workers.
func New(opts ...Option) *Service {
	s := &Service{
		catalog:        model.DefaultCatalog(),
		now:            time.Now,
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		asyncRecompute: true,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s,
		workerpool.WithLogger(s.logger))
	return s
}

// Start launches the recompute workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.pool.Start(ctx)
	s.started = true
	metrics.UpdateWorkerCount(s.workerCount)
	s.logger.Info(ctx, "affinity service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Bool("async_recompute", s.asyncRecompute),
	)
	return nil
}

// Stop drains pending recomputes and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return s.store.Close()
	}

	s.logger.Info(ctx, "stopping affinity service")
	err := s.pool.Shutdown(ctx)
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.started = false
	s.logger.Info(ctx, "affinity service stopped")
	return err
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	stats := map[string]interface{}{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueLength":       queueLen,
		"queueCapacity":     s.queue.Capacity(),
		"dedupeSize":        s.deduper.Size(),
		"asyncRecompute":    s.asyncRecompute,
		"recomputed":        s.pool.Processed(),
		"recomputeFailed":   s.pool.Failed(),
		"storeBreakerState": "none",
	}
	if b, ok := s.store.(interface{ State() string }); ok {
		stats["storeBreakerState"] = b.State()
	}

	metrics.UpdateQueueSize(queueLen)
	return stats
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
