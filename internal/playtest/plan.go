package playtest

import (
	"fmt"
	"math/rand/v2"
)

// Play ranges. Scores stay on the 0..100 scale the games report.
const (
	maxPlayScore   = 100
	minPlaySeconds = 20
	maxPlaySeconds = 300
	maxPlayHints   = 3
	replayPercent  = 25
	retakePercent  = 25
	percentScale   = 100
)

// Completion is one game completion a simulated player sends.
type Completion struct {
	GameID    string `json:"-"`
	EventID   string `json:"event_id"`
	Score     int    `json:"score"`
	TimeSpent int    `json:"time_spent"`
	HintsUsed int    `json:"hints_used"`
	// Replay resends an earlier completion with the same event id; the
	// server must acknowledge it as a duplicate.
	Replay bool `json:"-"`
}

// SessionPlan is the ordered list of completions of one session.
type SessionPlan struct {
	Index       int
	Completions []Completion
}

// Planner generates deterministic session plans from a seed.
type Planner struct {
	rng   *rand.Rand
	games []string
}

// NewPlanner creates a planner over the given game ids.
func NewPlanner(seed uint64, games []string) *Planner {
	return &Planner{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		games: games,
	}
}

// Plan builds the plan of session index. Each session plays a random
// non-empty subset of the games, sometimes retakes one with a new score
// and sometimes replays a completion verbatim.
func (p *Planner) Plan(index int) SessionPlan {
	plan := SessionPlan{Index: index}
	if len(p.games) == 0 {
		return plan
	}

	order := p.rng.Perm(len(p.games))
	n := 1 + p.rng.IntN(len(p.games))
	for i, gi := range order[:n] {
		plan.Completions = append(plan.Completions, p.completion(index, i, p.games[gi]))
	}

	if p.chance(retakePercent) {
		g := plan.Completions[p.rng.IntN(len(plan.Completions))].GameID
		plan.Completions = append(plan.Completions, p.completion(index, len(plan.Completions), g))
	}
	if p.chance(replayPercent) {
		again := plan.Completions[p.rng.IntN(len(plan.Completions))]
		again.Replay = true
		plan.Completions = append(plan.Completions, again)
	}
	return plan
}

func (p *Planner) completion(session, seq int, gameID string) Completion {
	return Completion{
		GameID:    gameID,
		EventID:   fmt.Sprintf("pt-%d-%d", session, seq),
		Score:     p.rng.IntN(maxPlayScore + 1),
		TimeSpent: minPlaySeconds + p.rng.IntN(maxPlaySeconds-minPlaySeconds+1),
		HintsUsed: p.rng.IntN(maxPlayHints + 1),
	}
}

func (p *Planner) chance(percent int) bool {
	return p.rng.IntN(percentScale) < percent
}
