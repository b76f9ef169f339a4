// Package repository persists sessions, game events and affinity snapshots.
package repository

import (
	"context"
	"time"

	"github.com/okian/affinity/internal/domain/model"
)

// EventStore is the append-only log of game events.
type EventStore interface {
	// InsertEvent appends e and refreshes the session's last activity in the
	// same write. Completions also bump the session counters.
	// Returns model.ErrSessionNotFound for an unknown session and
	// model.ErrDuplicateEvent when e.ClientEventID was already stored for it.
	InsertEvent(ctx context.Context, e *model.GameEvent) error

	// QueryCompletedEvents returns every completion of a session, oldest first.
	QueryCompletedEvents(ctx context.Context, sessionID string) ([]model.GameEvent, error)

	// History returns every event of a session, newest first.
	History(ctx context.Context, sessionID string) ([]model.GameEvent, error)

	SessionExists(ctx context.Context, sessionID string) (bool, error)
}

// SessionStore manages anonymous sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) error
	// GetSession returns model.ErrSessionNotFound for an unknown id.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
}

// SnapshotStore keeps one affinity snapshot per session.
type SnapshotStore interface {
	// UpsertSnapshot inserts or replaces the whole row keyed by SessionID.
	UpsertSnapshot(ctx context.Context, s *model.Snapshot) error
	// GetSnapshot returns model.ErrNotFound when nothing was computed yet.
	GetSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error)
}

// Store bundles every persistence concern of the service.
//
// Infrastructure failures satisfy errors.Is(err, model.ErrStoreUnavailable).
type Store interface {
	EventStore
	SessionStore
	SnapshotStore

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BreakerStore)(nil)
)
