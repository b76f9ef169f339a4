// Package queue holds pending affinity recompute requests between a game
// completion and the worker that refreshes the session snapshot.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/affinity/pkg/metrics"
)

const defaultQueueCapacity = 1024

// RecomputeRequest asks for the snapshot of one session to be refreshed.
type RecomputeRequest struct {
	SessionID   string
	RequestedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. A session that is already pending is coalesced
	// into the existing request. Returns ErrFull or ErrClosed when rejected.
	Enqueue(ctx context.Context, r RecomputeRequest) error

	// Dequeue returns a channel that receives requests until the queue is
	// closed and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan RecomputeRequest

	Len(ctx context.Context) int
	Capacity() int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests chan RecomputeRequest
	capacity int

	mu      sync.RWMutex
	closed  bool
	pending map[string]struct{}
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan RecomputeRequest, q.capacity)
	q.pending = make(map[string]struct{}, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue adds a request without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r RecomputeRequest) error {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if _, ok := q.pending[r.SessionID]; ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.requests <- r:
		q.pending[r.SessionID] = struct{}{}
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel fed from the queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan RecomputeRequest {
	out := make(chan RecomputeRequest)
	go func() {
		defer close(out)
		for {
			select {
			case r, ok := <-q.requests:
				if !ok {
					return
				}
				q.mu.Lock()
				delete(q.pending, r.SessionID)
				q.observe()
				q.mu.Unlock()

				select {
				case out <- r:
					metrics.RecordQueueDequeue()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued requests.
func (q *InMemoryQueue) Len(context.Context) int {
	return len(q.requests)
}

// Capacity returns the maximum number of queued requests.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting requests. Already queued requests are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// observe publishes size and utilization. Must be called with q.mu held.
func (q *InMemoryQueue) observe() {
	size := len(q.requests)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
