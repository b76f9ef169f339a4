package model

import (
	"fmt"
	"time"
)

// Confidence is the gap-based categorical confidence. Values are totally
// ordered: Low < Medium < High < VeryHigh. The zero value means "none".
type Confidence uint8

// Confidence levels.
const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceVeryHigh
)

var confidenceNames = [...]string{
	ConfidenceLow:      "low",
	ConfidenceMedium:   "medium",
	ConfidenceHigh:     "high",
	ConfidenceVeryHigh: "very high",
}

// Valid reports whether c is a confidence level.
func (c Confidence) Valid() bool {
	return c >= ConfidenceLow && c <= ConfidenceVeryHigh
}

func (c Confidence) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Confidence(%d)", uint8(c))
	}
	return confidenceNames[c]
}

// MarshalText encodes the label.
func (c Confidence) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid confidence %d", uint8(c))
	}
	return []byte(confidenceNames[c]), nil
}

// ParseConfidence resolves a label.
func ParseConfidence(s string) (Confidence, error) {
	for c := ConfidenceLow; c <= ConfidenceVeryHigh; c++ {
		if confidenceNames[c] == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid confidence %q", s)
}

// Snapshot is the cached result of the latest affinity computation for a
// session. It is always written as a whole row.
type Snapshot struct {
	SessionID string
	Scores    DomainScores
	// Dominant is zero when the session has no completions.
	Dominant Domain
	// Confidence is zero when the session has no completions.
	Confidence         Confidence
	ConfidenceFraction float64
	TotalGames         int
	CalculatedAt       time.Time
}

// HasDominant reports whether the snapshot names a dominant domain.
func (s *Snapshot) HasDominant() bool {
	return s.Dominant.Valid()
}
