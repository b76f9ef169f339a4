package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

const (
	defaultBreakerName  = "store"
	defaultMaxFailures  = 5
	defaultOpenTimeout  = 30 * time.Second
	halfOpenMaxRequests = 1
)

// BreakerStore wraps a Store with a circuit breaker. While the breaker is
// open every call fails fast with model.ErrStoreUnavailable. Only
// infrastructure failures count against the breaker; domain errors such as
// model.ErrSessionNotFound pass through as successes.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]

	name        string
	maxFailures uint32
	openTimeout time.Duration
	log         logger.Logger
}

// NewBreakerStore wraps next.
func NewBreakerStore(next Store, opts ...BreakerOption) *BreakerStore {
	b := &BreakerStore{
		next:        next,
		name:        defaultBreakerName,
		maxFailures: defaultMaxFailures,
		openTimeout: defaultOpenTimeout,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	metrics.UpdateBreakerState(b.name, stateToFloat(gobreaker.StateClosed))

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        b.name,
		MaxRequests: halfOpenMaxRequests,
		Timeout:     b.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn(context.Background(), "store breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateBreakerState(name, stateToFloat(to))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, model.ErrStoreUnavailable)
		},
	})
	return b
}

// State returns the breaker state name: closed, half-open or open.
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

// guard runs fn through the breaker.
func guard[T any](b *BreakerStore, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordBreakerRejected(b.name)
		var zero T
		return zero, fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := out.(T)
	if !ok && out != nil {
		var zero T
		return zero, fmt.Errorf("%s: unexpected result type %T", op, out)
	}
	return typed, nil
}

func guardErr(b *BreakerStore, op string, fn func() error) error {
	_, err := guard(b, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// InsertEvent implements EventStore.InsertEvent.
func (b *BreakerStore) InsertEvent(ctx context.Context, e *model.GameEvent) error {
	return guardErr(b, "insert_event", func() error { return b.next.InsertEvent(ctx, e) })
}

// QueryCompletedEvents implements EventStore.QueryCompletedEvents.
func (b *BreakerStore) QueryCompletedEvents(ctx context.Context, sessionID string) ([]model.GameEvent, error) {
	return guard(b, "query_completed_events", func() ([]model.GameEvent, error) {
		return b.next.QueryCompletedEvents(ctx, sessionID)
	})
}

// History implements EventStore.History.
func (b *BreakerStore) History(ctx context.Context, sessionID string) ([]model.GameEvent, error) {
	return guard(b, "history", func() ([]model.GameEvent, error) {
		return b.next.History(ctx, sessionID)
	})
}

// SessionExists implements SessionStore.SessionExists.
func (b *BreakerStore) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	return guard(b, "session_exists", func() (bool, error) {
		return b.next.SessionExists(ctx, sessionID)
	})
}

// CreateSession implements SessionStore.CreateSession.
func (b *BreakerStore) CreateSession(ctx context.Context, s *model.Session) error {
	return guardErr(b, "create_session", func() error { return b.next.CreateSession(ctx, s) })
}

// GetSession implements SessionStore.GetSession.
func (b *BreakerStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return guard(b, "get_session", func() (*model.Session, error) {
		return b.next.GetSession(ctx, id)
	})
}

// TouchSession implements SessionStore.TouchSession.
func (b *BreakerStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	return guardErr(b, "touch_session", func() error { return b.next.TouchSession(ctx, id, at) })
}

// UpsertSnapshot implements SnapshotStore.UpsertSnapshot.
func (b *BreakerStore) UpsertSnapshot(ctx context.Context, s *model.Snapshot) error {
	return guardErr(b, "upsert_snapshot", func() error { return b.next.UpsertSnapshot(ctx, s) })
}

// GetSnapshot implements SnapshotStore.GetSnapshot.
func (b *BreakerStore) GetSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error) {
	return guard(b, "get_snapshot", func() (*model.Snapshot, error) {
		return b.next.GetSnapshot(ctx, sessionID)
	})
}

// Ping implements Store.Ping.
func (b *BreakerStore) Ping(ctx context.Context) error {
	return guardErr(b, "ping", func() error { return b.next.Ping(ctx) })
}

// Close closes the wrapped store without going through the breaker.
func (b *BreakerStore) Close() error {
	return b.next.Close()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
