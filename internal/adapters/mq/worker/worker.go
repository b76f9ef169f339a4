// Package worker drains the recompute queue and refreshes affinity snapshots.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/affinity/internal/adapters/mq/queue"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

const (
	defaultRecomputeTimeout = 10 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Recomputer refreshes the affinity snapshot of one session.
type Recomputer interface {
	Recompute(ctx context.Context, sessionID string) error
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.RecomputeRequest
}

// InMemoryWorker processes recompute requests one at a time.
type InMemoryWorker struct {
	queue      Queue
	recomputer Recomputer
	name       string
	timeout    time.Duration
	logger     logger.Logger

	processed *atomic.Int64
	failed    *atomic.Int64

	done chan struct{}
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, r Recomputer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		recomputer: r,
		name:       "worker",
		timeout:    defaultRecomputeTimeout,
		logger:     logger.Nop(),
		processed:  new(atomic.Int64),
		failed:     new(atomic.Int64),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes requests until the queue is drained and closed or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			if err := w.process(ctx, r); err != nil {
				w.logger.Error(ctx, "recompute failed",
					logger.String("session_id", r.SessionID),
					logger.Error(err))
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, r queue.RecomputeRequest) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.recomputer.Recompute(ctx, r.SessionID); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "recompute_error")
		return fmt.Errorf("recompute session %s: %w", r.SessionID, err)
	}
	w.processed.Add(1)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	processed atomic.Int64
	failed    atomic.Int64

	cancel   context.CancelFunc
	started  atomic.Bool
	stopOnce sync.Once
}

// NewPool creates a pool of workerCount workers; values below 1 mean one per CPU.
func NewPool(workerCount int, q Queue, r Recomputer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
		cancel:  func() {},
	}
	probe := &InMemoryWorker{logger: p.logger}
	for _, opt := range opts {
		opt(probe)
	}
	p.logger = probe.logger.Named("worker-pool")

	for i := range p.workers {
		w := NewInMemoryWorker(q, r, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.processed = &p.processed
		w.failed = &p.failed
		p.workers[i] = w
	}

	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.started.Store(true)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns the number of successful recomputes.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Failed returns the number of failed recomputes.
func (p *Pool) Failed() int64 {
	return p.failed.Load()
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
// Workers still busy when ctx expires are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		if !p.started.Load() {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-ctx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("worker pool shutdown: %w", ctx.Err())
				p.cancel()
				<-w.Done()
			}
		}
		p.cancel()
		metrics.UpdateWorkerActiveCount(0)
	})
	return err
}
