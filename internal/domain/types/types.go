// Package types contains the result shapes returned by the service and
// encoded by the HTTP layer.
package types

import (
	"time"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/planet"
	"github.com/okian/affinity/internal/domain/scoring"
)

// AffinityResult is the composed output of an affinity computation. A nil
// DominantDomain, ConfidenceLabel or SuggestedPlanet encodes as null.
type AffinityResult struct {
	SessionID          string             `json:"sessionId"`
	DomainScores       model.DomainScores `json:"domainScores"`
	DominantDomain     *model.Domain      `json:"dominantDomain"`
	ConfidenceLabel    *model.Confidence  `json:"confidenceLabel"`
	ConfidenceFraction float64            `json:"confidenceFraction"`
	SuggestedPlanet    *PlanetView        `json:"suggestedPlanet"`
	TotalGamesPlayed   int                `json:"totalGamesPlayed"`
	CalculatedAt       time.Time          `json:"calculatedAt"`
	Breakdown          []DomainBreakdown  `json:"breakdown,omitempty"`
}

// DomainBreakdown exposes the accumulators and components of one domain.
type DomainBreakdown struct {
	Domain                  model.Domain `json:"domain"`
	GamesPlayed             int          `json:"gamesPlayed"`
	RawScoreSum             int          `json:"rawScoreSum"`
	TotalTimeSpent          int          `json:"totalTimeSpent"`
	TotalHints              int          `json:"totalHints"`
	AverageScore            float64      `json:"averageScore"`
	AverageTimeSpent        float64      `json:"averageTimeSpent"`
	BaseComponent           float64      `json:"baseComponent"`
	TimeEfficiencyComponent float64      `json:"timeEfficiencyComponent"`
	ConsistencyComponent    float64      `json:"consistencyComponent"`
	NormalizedScore         int          `json:"normalizedScore"`
}

// PlanetView is a planet as shown to clients.
type PlanetView struct {
	Domain      model.Domain `json:"domain"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Color       string       `json:"color"`
	Icon        string       `json:"icon"`
	Careers     []string     `json:"careers"`
}

// SuggestedPlanet is the planet unlocked by a session's latest snapshot.
type SuggestedPlanet struct {
	SessionID        string             `json:"sessionId"`
	DominantDomain   *model.Domain      `json:"dominantDomain"`
	ConfidenceLabel  *model.Confidence  `json:"confidenceLabel"`
	Planet           *PlanetView        `json:"planet"`
	DomainScores     model.DomainScores `json:"domainScores"`
	UnlockPercentage int                `json:"unlockPercentage"`
	Reasoning        string             `json:"reasoning"`
}

// DomainInsight lists the tips for one domain.
type DomainInsight struct {
	Domain          model.Domain  `json:"domain"`
	NormalizedScore int           `json:"normalizedScore"`
	Tips            []scoring.Tip `json:"tips"`
}

// Insights is the tip list of a session.
type Insights struct {
	SessionID string          `json:"sessionId"`
	Domains   []DomainInsight `json:"domains"`
}

// SessionView is a session as shown to clients.
type SessionView struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivity   time.Time `json:"lastActivity"`
	CompletedGames int       `json:"completedGames"`
	TotalScore     int       `json:"totalScore"`
}

// GameView is a catalog entry as shown to clients.
type GameView struct {
	ID                       model.GameID   `json:"id"`
	Name                     string         `json:"name"`
	Description              string         `json:"description"`
	Domain                   model.Domain   `json:"domain"`
	RelatedDomains           []model.Domain `json:"relatedDomains"`
	Difficulty               int            `json:"difficulty"`
	EstimatedDurationSeconds int            `json:"estimatedDurationSeconds"`
	MaxPoints                int            `json:"maxPoints"`
}

// CompletedGame is the final completion of one game.
type CompletedGame struct {
	GameID           model.GameID `json:"gameId"`
	Name             string       `json:"name"`
	Domain           model.Domain `json:"domain"`
	Score            int          `json:"score"`
	TimeSpentSeconds int          `json:"timeSpentSeconds"`
	HintsUsed        int          `json:"hintsUsed"`
	CompletedAt      time.Time    `json:"completedAt"`
}

// DomainStats summarizes one domain over the final completions.
type DomainStats struct {
	Domain           model.Domain `json:"domain"`
	GamesPlayed      int          `json:"gamesPlayed"`
	AverageScore     float64      `json:"averageScore"`
	AverageTimeSpent float64      `json:"averageTimeSpent"`
}

// SessionStats combines the raw session counters with per-domain stats.
type SessionStats struct {
	SessionID      string        `json:"sessionId"`
	CompletedGames int           `json:"completedGames"`
	TotalScore     int           `json:"totalScore"`
	UniqueGames    int           `json:"uniqueGames"`
	Domains        []DomainStats `json:"domains"`
}

// EventView is one raw event of a session's history.
type EventView struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"sessionId"`
	GameID           model.GameID    `json:"gameId"`
	Type             model.EventType `json:"type"`
	Score            int             `json:"score,omitempty"`
	TimeSpentSeconds int             `json:"timeSpentSeconds,omitempty"`
	HintsUsed        int             `json:"hintsUsed,omitempty"`
	Data             map[string]any  `json:"data,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// EventAck acknowledges an accepted or replayed event.
type EventAck struct {
	EventID       string          `json:"eventId,omitempty"`
	ClientEventID string          `json:"clientEventId,omitempty"`
	SessionID     string          `json:"sessionId"`
	GameID        model.GameID    `json:"gameId"`
	Type          model.EventType `json:"type"`
	CreatedAt     time.Time       `json:"createdAt"`
	Duplicate     bool            `json:"duplicate"`
}

// Completion is the payload of a finished game.
type Completion struct {
	SessionID        string
	GameID           string
	Score            int
	TimeSpentSeconds int
	HintsUsed        int
	Choices          map[string]any
	// ClientEventID makes the completion idempotent when set.
	ClientEventID string
}

// RawEvent is a non-completion event reported by a game.
type RawEvent struct {
	SessionID string
	GameID    string
	Type      string
	Data      map[string]any
}

// NewPlanetView converts a recommendation; nil stays nil.
func NewPlanetView(p *planet.Recommendation) *PlanetView {
	if p == nil {
		return nil
	}
	return &PlanetView{
		Domain:      p.Domain,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		Icon:        p.Icon,
		Careers:     p.Careers,
	}
}

// NewBreakdown converts the affinities of the domains with data, canonical order.
func NewBreakdown(r *scoring.Result) []DomainBreakdown {
	out := make([]DomainBreakdown, 0, model.DomainCount)
	for i := range r.Domains {
		a := &r.Domains[i]
		if !a.HasData() {
			continue
		}
		out = append(out, DomainBreakdown{
			Domain:                  a.Domain,
			GamesPlayed:             a.GamesPlayed,
			RawScoreSum:             a.RawScoreSum,
			TotalTimeSpent:          a.TotalTimeSpent,
			TotalHints:              a.TotalHints,
			AverageScore:            a.AverageScore,
			AverageTimeSpent:        a.AverageTimeSpent,
			BaseComponent:           a.BaseComponent,
			TimeEfficiencyComponent: a.TimeEfficiencyComponent,
			ConsistencyComponent:    a.ConsistencyComponent,
			NormalizedScore:         a.NormalizedScore,
		})
	}
	return out
}

// NewSessionView converts a session.
func NewSessionView(s *model.Session) SessionView {
	return SessionView{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastActivity:   s.LastActivity,
		CompletedGames: s.CompletedGames,
		TotalScore:     s.TotalScore,
	}
}

// NewGameView converts a catalog entry.
func NewGameView(g model.Game) GameView {
	return GameView{
		ID:                       g.ID,
		Name:                     g.Name,
		Description:              g.Description,
		Domain:                   g.Domain,
		RelatedDomains:           g.RelatedDomains,
		Difficulty:               g.Difficulty,
		EstimatedDurationSeconds: g.EstimatedSeconds(),
		MaxPoints:                g.MaxPoints,
	}
}

// NewEventView converts a stored event.
func NewEventView(e *model.GameEvent) EventView {
	return EventView{
		ID:               e.ID,
		SessionID:        e.SessionID,
		GameID:           e.GameID,
		Type:             e.Type,
		Score:            e.Score,
		TimeSpentSeconds: e.TimeSpentSeconds,
		HintsUsed:        e.HintsUsed,
		Data:             e.Data,
		CreatedAt:        e.CreatedAt,
	}
}

// DomainPtr returns nil for the zero Domain.
func DomainPtr(d model.Domain) *model.Domain {
	if !d.Valid() {
		return nil
	}
	return &d
}

// ConfidencePtr returns nil for the zero Confidence.
func ConfidencePtr(c model.Confidence) *model.Confidence {
	if !c.Valid() {
		return nil
	}
	return &c
}
