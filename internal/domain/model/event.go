package model

import (
	"fmt"
	"time"
)

// EventType classifies a raw game event.
type EventType uint8

// Known event types.
const (
	EventGameStarted EventType = iota + 1
	EventGameCompleted
	EventHintUsed
	EventLevelCompleted
)

var eventTypeNames = [...]string{
	EventGameStarted:    "game_started",
	EventGameCompleted:  "game_completed",
	EventHintUsed:       "hint_used",
	EventLevelCompleted: "level_completed",
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t >= EventGameStarted && t <= EventLevelCompleted
}

func (t EventType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("EventType(%d)", uint8(t))
	}
	return eventTypeNames[t]
}

// MarshalText encodes the event type name.
func (t EventType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: event type %d", ErrInvalidEvent, uint8(t))
	}
	return []byte(eventTypeNames[t]), nil
}

// ParseEventType resolves an event type name.
func ParseEventType(s string) (EventType, error) {
	for t := EventGameStarted; t <= EventLevelCompleted; t++ {
		if eventTypeNames[t] == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: event type %q", ErrInvalidEvent, s)
}

// GameEvent is one row of a session's append-only event log. Completion
// events (Type == EventGameCompleted) are the input of the affinity pipeline;
// Score, TimeSpentSeconds and HintsUsed are only meaningful for them.
type GameEvent struct {
	ID               string
	SessionID        string
	GameID           GameID
	Type             EventType
	Score            int
	TimeSpentSeconds int
	HintsUsed        int
	// ClientEventID is the optional idempotency key supplied by the client.
	ClientEventID string
	Data          map[string]any
	CreatedAt     time.Time
}

// IsCompletion reports whether e is a game completion.
func (e *GameEvent) IsCompletion() bool {
	return e.Type == EventGameCompleted
}

// Validate checks the structural invariants of an event before it is stored.
func (e *GameEvent) Validate() error {
	switch {
	case e.SessionID == "":
		return fmt.Errorf("%w: missing session id", ErrInvalidEvent)
	case !e.GameID.Valid():
		return fmt.Errorf("%w: unknown game %d", ErrInvalidEvent, uint8(e.GameID))
	case !e.Type.Valid():
		return fmt.Errorf("%w: unknown type %d", ErrInvalidEvent, uint8(e.Type))
	case e.Score < 0:
		return fmt.Errorf("%w: score must be >= 0", ErrInvalidEvent)
	case e.TimeSpentSeconds < 0:
		return fmt.Errorf("%w: time spent must be >= 0", ErrInvalidEvent)
	case e.HintsUsed < 0:
		return fmt.Errorf("%w: hints used must be >= 0", ErrInvalidEvent)
	}
	return nil
}
