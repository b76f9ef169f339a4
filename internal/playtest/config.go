// Package playtest simulates players against a running affinity service:
// it creates sessions, plays games, recomputes affinity and optionally
// checks every result against a local computation.
package playtest

import (
	"errors"
	"fmt"
	"time"
)

// ErrMismatch marks a session whose server result differs from the local one.
var ErrMismatch = errors.New("affinity mismatch")

// Config holds configuration for a playtest run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Sessions    int           // Number of simulated sessions
	Concurrency int           // Sessions played at the same time
	Timeout     time.Duration // HTTP request timeout
	Seed        uint64        // Seed of the play generator
	Verify      bool          // Recompute expected results locally
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url must not be empty")
	case c.Sessions <= 0:
		return fmt.Errorf("sessions must be positive, got %d", c.Sessions)
	case c.Concurrency <= 0:
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	SessionsCreated      int
	CompletionsSent      int
	CompletionsDuplicate int
	RequestsFailed       int
	Recomputed           int
	Verified             int
	Mismatches           int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
