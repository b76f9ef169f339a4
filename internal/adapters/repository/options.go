package repository

import (
	"time"

	"github.com/okian/affinity/pkg/logger"
)

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteLogger sets the logger of the SQLite store.
func WithSQLiteLogger(l logger.Logger) SQLiteOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.log = l
		}
	}
}

// BreakerOption configures a BreakerStore.
type BreakerOption func(*BreakerStore)

// WithBreakerName sets the breaker name used in logs and metrics.
func WithBreakerName(name string) BreakerOption {
	return func(b *BreakerStore) {
		if name != "" {
			b.name = name
		}
	}
}

// WithMaxFailures sets how many consecutive infrastructure failures open the breaker.
func WithMaxFailures(n uint32) BreakerOption {
	return func(b *BreakerStore) {
		if n > 0 {
			b.maxFailures = n
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing again.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(b *BreakerStore) {
		if d > 0 {
			b.openTimeout = d
		}
	}
}

// WithBreakerLogger sets the logger used for state transitions.
func WithBreakerLogger(l logger.Logger) BreakerOption {
	return func(b *BreakerStore) {
		if l != nil {
			b.log = l
		}
	}
}
