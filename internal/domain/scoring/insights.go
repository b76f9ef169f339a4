package scoring

import (
	"math"

	"github.com/okian/affinity/internal/domain/model"
)

// Tip is a short improvement hint for one domain.
type Tip string

// Known tips.
const (
	TipPracticeSpeed Tip = "practice_speed"
	TipPlayMore      Tip = "play_more"
	TipKeepGoing     Tip = "keep_going"
)

const (
	slowThreshold         = 20.0
	thinCoverageThreshold = 50.0
)

// DomainInsight carries the tips for one domain with data.
type DomainInsight struct {
	Domain          model.Domain
	NormalizedScore int
	Tips            []Tip
}

// Insights derives tips for every domain with data, canonical order.
func Insights(r Result) []DomainInsight {
	out := make([]DomainInsight, 0, model.DomainCount)
	for i := range r.Domains {
		a := &r.Domains[i]
		if !a.HasData() {
			continue
		}

		var tips []Tip
		if a.TimeEfficiencyComponent < slowThreshold {
			tips = append(tips, TipPracticeSpeed)
		}
		if math.Min(maxComponent, float64(a.GamesPlayed)*ConsistencyPerGame) < thinCoverageThreshold {
			tips = append(tips, TipPlayMore)
		}
		if len(tips) == 0 {
			tips = append(tips, TipKeepGoing)
		}

		out = append(out, DomainInsight{
			Domain:          a.Domain,
			NormalizedScore: a.NormalizedScore,
			Tips:            tips,
		})
	}
	return out
}
