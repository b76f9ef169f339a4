package dedupe

import (
	"github.com/okian/affinity/internal/domain/model"
)

// LatestPerGame keeps, for every game, only its most recent completion by
// CreatedAt. Non-completion events are ignored. On equal timestamps the
// larger event ID wins so the choice never depends on input order. The
// result follows catalog order.
func LatestPerGame(events []model.GameEvent) []model.GameEvent {
	var latest [model.GameCount]*model.GameEvent

	for i := range events {
		e := &events[i]
		if !e.IsCompletion() || !e.GameID.Valid() {
			continue
		}
		slot := &latest[e.GameID-1]
		if *slot == nil || newer(e, *slot) {
			*slot = e
		}
	}

	out := make([]model.GameEvent, 0, model.GameCount)
	for _, e := range latest {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func newer(a, b *model.GameEvent) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}
