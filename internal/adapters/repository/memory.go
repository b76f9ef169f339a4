package repository

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/okian/affinity/internal/domain/model"
)

// MemoryStore is a process-local Store. Nothing survives a restart; it backs
// tests and the "memory" store setting.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*model.Session
	events    map[string][]model.GameEvent
	clientIDs map[string]map[string]struct{}
	snapshots map[string]model.Snapshot
	closed    bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*model.Session),
		events:    make(map[string][]model.GameEvent),
		clientIDs: make(map[string]map[string]struct{}),
		snapshots: make(map[string]model.Snapshot),
	}
}

var errClosed = errors.New("memory store closed")

// Ping implements Store.Ping.
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return unavailable("ping", errClosed)
	}
	return nil
}

// Close implements Store.Close. Every later call fails as unavailable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// CreateSession implements SessionStore.CreateSession.
func (m *MemoryStore) CreateSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("create session", errClosed)
	}
	if _, ok := m.sessions[s.ID]; ok {
		return unavailable("create session", fmt.Errorf("session %s already exists", s.ID))
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

// GetSession implements SessionStore.GetSession.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("get session", errClosed)
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", id, model.ErrSessionNotFound)
	}
	cp := *s
	return &cp, nil
}

// TouchSession implements SessionStore.TouchSession.
func (m *MemoryStore) TouchSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("touch session", errClosed)
	}
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrSessionNotFound)
	}
	s.LastActivity = at
	return nil
}

// SessionExists implements SessionStore.SessionExists.
func (m *MemoryStore) SessionExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, unavailable("session exists", errClosed)
	}
	_, ok := m.sessions[id]
	return ok, nil
}

// InsertEvent implements EventStore.InsertEvent. The event is copied, Data included.
func (m *MemoryStore) InsertEvent(_ context.Context, e *model.GameEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("insert event", errClosed)
	}

	s, ok := m.sessions[e.SessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", e.SessionID, model.ErrSessionNotFound)
	}
	if e.ClientEventID != "" {
		seen := m.clientIDs[e.SessionID]
		if _, dup := seen[e.ClientEventID]; dup {
			return fmt.Errorf("insert event %q: %w", e.ClientEventID, model.ErrDuplicateEvent)
		}
		if seen == nil {
			seen = make(map[string]struct{})
			m.clientIDs[e.SessionID] = seen
		}
		seen[e.ClientEventID] = struct{}{}
	}

	m.events[e.SessionID] = append(m.events[e.SessionID], cloneEvent(e))

	if e.IsCompletion() {
		s.CompletedGames++
		s.TotalScore += e.Score
	}
	s.LastActivity = e.CreatedAt
	return nil
}

// QueryCompletedEvents implements EventStore.QueryCompletedEvents: oldest
// first, insertion order breaks timestamp ties.
func (m *MemoryStore) QueryCompletedEvents(_ context.Context, sessionID string) ([]model.GameEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("query completed events", errClosed)
	}

	var out []model.GameEvent
	for _, e := range m.events[sessionID] {
		if e.IsCompletion() {
			out = append(out, cloneEvent(&e))
		}
	}
	slices.SortStableFunc(out, func(a, b model.GameEvent) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// History implements EventStore.History: every event newest first.
func (m *MemoryStore) History(_ context.Context, sessionID string) ([]model.GameEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("history", errClosed)
	}

	src := m.events[sessionID]
	out := make([]model.GameEvent, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, cloneEvent(&src[i]))
	}
	slices.SortStableFunc(out, func(a, b model.GameEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// UpsertSnapshot implements SnapshotStore.UpsertSnapshot.
func (m *MemoryStore) UpsertSnapshot(_ context.Context, s *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("upsert snapshot", errClosed)
	}
	if _, ok := m.sessions[s.SessionID]; !ok {
		return fmt.Errorf("upsert snapshot %s: %w", s.SessionID, model.ErrSessionNotFound)
	}
	m.snapshots[s.SessionID] = *s
	return nil
}

// GetSnapshot implements SnapshotStore.GetSnapshot.
func (m *MemoryStore) GetSnapshot(_ context.Context, sessionID string) (*model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("get snapshot", errClosed)
	}
	s, ok := m.snapshots[sessionID]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", sessionID, model.ErrNotFound)
	}
	return &s, nil
}

// cloneEvent copies e so the stored log never shares a Data map with callers.
func cloneEvent(e *model.GameEvent) model.GameEvent {
	cp := *e
	cp.Data = maps.Clone(e.Data)
	return cp
}
