package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is an anonymous play context.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	// CompletedGames and TotalScore count every accepted completion,
	// replays of the same game included.
	CompletedGames int
	TotalScore     int
	UserAgent      string
	IPAddress      string
}

// ParseSessionID validates a session id and returns its canonical form.
func ParseSessionID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: session id %q", ErrInvalidIdentifier, s)
	}
	return id.String(), nil
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}
