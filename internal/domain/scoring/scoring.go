// Package scoring turns a session's deduplicated game completions into
// per-domain affinity scores, a dominant domain and a confidence rating.
//
// Everything here is pure: no I/O, no clocks, no shared state. Aggregate may
// be called concurrently from any number of goroutines.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/affinity/internal/domain/model"
)

// Weighting policy. Fixed constants, not configuration.
const (
	BaseWeight        = 0.4
	TimeWeight        = 0.3
	ConsistencyWeight = 0.3

	// TimeBudgetSeconds is the reference duration; slower play earns no time credit.
	TimeBudgetSeconds = 180.0
	// ConsistencyPerGame is the consistency credit per game, saturating at 100.
	ConsistencyPerGame = 25.0
	maxComponent       = 100.0

	// VolumeSaturation is the number of games at which the numeric confidence reaches 1.
	VolumeSaturation = 8

	maxNormalizedScore = 100

	// Exact halves such as 54.5 must not be read as 54.4999999.
	snap = 1e9
)

// Gap thresholds for the categorical confidence.
const (
	GapVeryHigh = 30
	GapHigh     = 20
	GapMedium   = 10
)

// Play is one deduplicated completion as the aggregator sees it.
type Play struct {
	Domain           model.Domain
	Score            int
	TimeSpentSeconds int
	HintsUsed        int
}

// DomainAffinity holds the accumulators and weighted components of one domain.
type DomainAffinity struct {
	Domain         model.Domain
	RawScoreSum    int
	GamesPlayed    int
	TotalTimeSpent int
	TotalHints     int

	AverageScore            float64
	AverageTimeSpent        float64
	BaseComponent           float64
	TimeEfficiencyComponent float64
	ConsistencyComponent    float64

	NormalizedScore int
}

// HasData reports whether at least one game fed this domain.
func (a *DomainAffinity) HasData() bool {
	return a.GamesPlayed > 0
}

// Result is the outcome of Aggregate.
type Result struct {
	// Domains is indexed by model.Domain.Index, canonical order.
	Domains [model.DomainCount]DomainAffinity
	Scores  model.DomainScores
	// Dominant and Confidence are zero when no domain has data.
	Dominant           model.Domain
	Confidence         model.Confidence
	ConfidenceFraction float64
	TotalGames         int
}

// Domain returns the affinity of d.
func (r *Result) Domain(d model.Domain) DomainAffinity {
	if !d.Valid() {
		return DomainAffinity{}
	}
	return r.Domains[d.Index()]
}

// Aggregate computes per-domain scores, the dominant domain and both
// confidence forms. plays must already hold at most one completion per game.
// The only error is model.ErrUnknownDomain for a play outside the four domains.
func Aggregate(plays []Play) (Result, error) {
	var r Result
	for i, d := range model.Domains {
		r.Domains[i].Domain = d
	}

	for _, p := range plays {
		if !p.Domain.Valid() {
			return Result{}, fmt.Errorf("aggregate: %w: %d", model.ErrUnknownDomain, uint8(p.Domain))
		}
		a := &r.Domains[p.Domain.Index()]
		a.RawScoreSum += p.Score
		a.GamesPlayed++
		a.TotalTimeSpent += p.TimeSpentSeconds
		a.TotalHints += p.HintsUsed
		r.TotalGames++
	}

	for i := range r.Domains {
		a := &r.Domains[i]
		if a.HasData() {
			weigh(a)
		}
		r.Scores.Set(a.Domain, a.NormalizedScore)
	}

	r.Dominant, r.Confidence = rank(&r)
	r.ConfidenceFraction = VolumeConfidence(r.TotalGames)
	return r, nil
}

// weigh fills the averages, components and normalized score of a domain with data.
func weigh(a *DomainAffinity) {
	games := float64(a.GamesPlayed)
	a.AverageScore = float64(a.RawScoreSum) / games
	a.AverageTimeSpent = float64(a.TotalTimeSpent) / games

	a.BaseComponent = settle(a.AverageScore * BaseWeight)
	a.TimeEfficiencyComponent = settle(math.Max(0, TimeBudgetSeconds-a.AverageTimeSpent) * maxComponent * TimeWeight / TimeBudgetSeconds)
	a.ConsistencyComponent = settle(math.Min(maxComponent, games*ConsistencyPerGame) * ConsistencyWeight)

	a.NormalizedScore = clamp(RoundHalfUp(a.BaseComponent+a.TimeEfficiencyComponent+a.ConsistencyComponent), 0, maxNormalizedScore)
}

// rank picks the dominant domain among domains with data and classifies the
// confidence from the gap to the runner-up.
func rank(r *Result) (model.Domain, model.Confidence) {
	var (
		dominant model.Domain
		top      = -1
		scores   []int
	)
	// Canonical iteration with a strict comparison: earlier domains win ties.
	for i := range r.Domains {
		a := &r.Domains[i]
		if !a.HasData() {
			continue
		}
		scores = append(scores, a.NormalizedScore)
		if a.NormalizedScore > top {
			top = a.NormalizedScore
			dominant = a.Domain
		}
	}

	switch len(scores) {
	case 0:
		return 0, 0
	case 1:
		return dominant, model.ConfidenceVeryHigh
	}

	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	return dominant, ClassifyGap(scores[0] - scores[1])
}

// ClassifyGap maps the gap between the top two domain scores to a label.
// It is monotonic: a larger gap never yields a lower label.
func ClassifyGap(gap int) model.Confidence {
	switch {
	case gap >= GapVeryHigh:
		return model.ConfidenceVeryHigh
	case gap >= GapHigh:
		return model.ConfidenceHigh
	case gap >= GapMedium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// VolumeConfidence is the numeric, volume-based confidence min(1, games/8).
func VolumeConfidence(totalGames int) float64 {
	if totalGames <= 0 {
		return 0
	}
	return math.Min(1, float64(totalGames)/VolumeSaturation)
}

// RoundHalfUp rounds to the nearest integer with halves going up.
func RoundHalfUp(x float64) int {
	return int(math.Floor(settle(x) + 0.5))
}

// settle drops floating point noise below the ninth decimal.
func settle(x float64) float64 {
	return math.Round(x*snap) / snap
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
