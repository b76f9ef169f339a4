package playtest

import (
	"fmt"
	"math"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/scoring"
)

const fractionTolerance = 1e-9

// Expected computes the result the server should return for plan: the
// last non-replayed completion of every game, scored locally.
func Expected(plan SessionPlan, domains map[string]model.Domain) (scoring.Result, error) {
	last := make(map[string]Completion, len(domains))
	var order []string
	for _, c := range plan.Completions {
		if c.Replay {
			continue
		}
		if _, seen := last[c.GameID]; !seen {
			order = append(order, c.GameID)
		}
		last[c.GameID] = c
	}

	plays := make([]scoring.Play, 0, len(order))
	for _, g := range order {
		d, ok := domains[g]
		if !ok {
			return scoring.Result{}, fmt.Errorf("game %s: %w", g, model.ErrUnknownGame)
		}
		c := last[g]
		plays = append(plays, scoring.Play{
			Domain:           d,
			Score:            c.Score,
			TimeSpentSeconds: c.TimeSpent,
			HintsUsed:        c.HintsUsed,
		})
	}
	return scoring.Aggregate(plays)
}

// Compare lists every difference between the server result and want.
func Compare(got *AffinityResponse, want *scoring.Result) []string {
	var diffs []string
	if got.DomainScores != want.Scores {
		diffs = append(diffs, fmt.Sprintf("scores: got %+v, want %+v", got.DomainScores, want.Scores))
	}
	if w := optional(want.Dominant.Valid(), want.Dominant.String()); got.DominantDomain != w {
		diffs = append(diffs, fmt.Sprintf("dominant: got %q, want %q", got.DominantDomain, w))
	}
	if w := optional(want.Confidence.Valid(), want.Confidence.String()); got.ConfidenceLabel != w {
		diffs = append(diffs, fmt.Sprintf("confidence: got %q, want %q", got.ConfidenceLabel, w))
	}
	if math.Abs(got.ConfidenceFraction-want.ConfidenceFraction) > fractionTolerance {
		diffs = append(diffs, fmt.Sprintf("fraction: got %v, want %v", got.ConfidenceFraction, want.ConfidenceFraction))
	}
	if got.TotalGamesPlayed != want.TotalGames {
		diffs = append(diffs, fmt.Sprintf("games: got %d, want %d", got.TotalGamesPlayed, want.TotalGames))
	}
	return diffs
}

func optional(ok bool, s string) string {
	if !ok {
		return ""
	}
	return s
}
