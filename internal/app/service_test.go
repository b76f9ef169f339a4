package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/affinity/internal/adapters/repository"
	service "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/scoring"
	"github.com/okian/affinity/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeClock advances one second on every reading.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newSyncService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(newFakeClock().Now),
		service.WithAsyncRecompute(false),
		service.WithWorkerCount(1),
	}
	return service.New(append(base, opts...)...)
}

func complete(ctx context.Context, svc *service.Service, sid, game string, score, secs int) types.EventAck {
	a, err := svc.CompleteGame(ctx, types.Completion{
		SessionID:        sid,
		GameID:           game,
		Score:            score,
		TimeSpentSeconds: secs,
	})
	So(err, ShouldBeNil)
	return a
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report sensible stats", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueCapacity"], ShouldEqual, 1024)
			So(stats["asyncRecompute"], ShouldEqual, true)
			So(stats["storeBreakerState"], ShouldEqual, "none")
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(500),
			service.WithDedupeSize(250),
		)

		Convey("Then the options should be applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueCapacity"], ShouldEqual, 500)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting and stopping it", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)

			Convey("Then the store should be closed", func() {
				So(errors.Is(svc.Ping(ctx), model.ErrStoreUnavailable), ShouldBeTrue)
			})
		})

		Convey("When starting twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_ComputeAffinity(t *testing.T) {
	ctx := context.Background()

	Convey("Given a synchronous service", t, func() {
		svc := newSyncService()

		Convey("When the session id is malformed", func() {
			_, err := svc.ComputeAffinity(ctx, "not-a-uuid")
			So(errors.Is(err, model.ErrInvalidIdentifier), ShouldBeTrue)
		})

		Convey("When the session does not exist", func() {
			_, err := svc.ComputeAffinity(ctx, model.NewSessionID())
			So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("When the session has no completions", func() {
			sess, err := svc.CreateSession(ctx, "test", "127.0.0.1")
			So(err, ShouldBeNil)

			res, err := svc.ComputeAffinity(ctx, sess.ID)
			So(err, ShouldBeNil)

			Convey("Then the result is empty but valid", func() {
				So(res.DomainScores, ShouldResemble, model.DomainScores{})
				So(res.DominantDomain, ShouldBeNil)
				So(res.ConfidenceLabel, ShouldBeNil)
				So(res.SuggestedPlanet, ShouldBeNil)
				So(res.TotalGamesPlayed, ShouldEqual, 0)
				So(res.Breakdown, ShouldBeEmpty)
			})

			Convey("Then a snapshot is stored", func() {
				snap, err := svc.LatestSnapshot(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(snap.DominantDomain, ShouldBeNil)
			})
		})

		Convey("When a single mathematics game is completed", func() {
			sess, _ := svc.CreateSession(ctx, "test", "127.0.0.1")
			complete(ctx, svc, sess.ID, "number_puzzle", 90, 60)

			res, err := svc.ComputeAffinity(ctx, sess.ID)
			So(err, ShouldBeNil)

			Convey("Then mathematics scores 64 with very high confidence", func() {
				So(res.DomainScores, ShouldResemble, model.DomainScores{Mathematics: 64})
				So(*res.DominantDomain, ShouldEqual, model.Mathematics)
				So(*res.ConfidenceLabel, ShouldEqual, model.ConfidenceVeryHigh)
				So(res.ConfidenceFraction, ShouldAlmostEqual, 0.125, 1e-9)
				So(res.TotalGamesPlayed, ShouldEqual, 1)
				So(res.SuggestedPlanet.Name, ShouldEqual, "Planeta Alfa")
				So(len(res.Breakdown), ShouldEqual, 1)
			})
		})

		Convey("When the same game is completed twice", func() {
			sess, _ := svc.CreateSession(ctx, "test", "127.0.0.1")
			complete(ctx, svc, sess.ID, "number_puzzle", 10, 170)
			complete(ctx, svc, sess.ID, "number_puzzle", 90, 60)

			res, err := svc.ComputeAffinity(ctx, sess.ID)
			So(err, ShouldBeNil)

			Convey("Then only the later completion counts", func() {
				So(res.DomainScores.Mathematics, ShouldEqual, 64)
				So(res.TotalGamesPlayed, ShouldEqual, 1)
			})

			Convey("Then the raw session counters still count both", func() {
				view, err := svc.GetSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(view.CompletedGames, ShouldEqual, 2)
				So(view.TotalScore, ShouldEqual, 100)
			})
		})

		Convey("When computing repeatedly", func() {
			sess, _ := svc.CreateSession(ctx, "test", "127.0.0.1")
			complete(ctx, svc, sess.ID, "space_explorer", 70, 100)
			complete(ctx, svc, sess.ID, "broken_bridge", 40, 120)

			first, err := svc.ComputeAffinity(ctx, sess.ID)
			So(err, ShouldBeNil)
			second, err := svc.ComputeAffinity(ctx, sess.ID)
			So(err, ShouldBeNil)

			Convey("Then only calculatedAt differs", func() {
				So(second.CalculatedAt.After(first.CalculatedAt), ShouldBeTrue)
				first.CalculatedAt = time.Time{}
				second.CalculatedAt = time.Time{}
				So(second, ShouldResemble, first)
			})

			Convey("Then the stored snapshot is the latest computation", func() {
				snap, err := svc.LatestSnapshot(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(snap.CalculatedAt, ShouldEqual, second.CalculatedAt)
				So(snap.DomainScores, ShouldResemble, second.DomainScores)
			})
		})
	})

	Convey("Given a catalog where green_invention feeds science", t, func() {
		catalog, err := model.NewCatalog(map[string]string{"green_invention": "science"})
		So(err, ShouldBeNil)
		svc := newSyncService(service.WithCatalog(catalog))

		sess, _ := svc.CreateSession(ctx, "test", "127.0.0.1")
		complete(ctx, svc, sess.ID, "number_puzzle", 80, 90)
		complete(ctx, svc, sess.ID, "green_invention", 50, 150)

		res, err := svc.ComputeAffinity(ctx, sess.ID)
		So(err, ShouldBeNil)

		Convey("Then mathematics leads science 55 to 33 with high confidence", func() {
			So(res.DomainScores.Mathematics, ShouldEqual, 55)
			So(res.DomainScores.Science, ShouldEqual, 33)
			So(*res.DominantDomain, ShouldEqual, model.Mathematics)
			So(*res.ConfidenceLabel, ShouldEqual, model.ConfidenceHigh)
			So(res.ConfidenceFraction, ShouldAlmostEqual, 0.25, 1e-9)
		})
	})
}

func TestService_Snapshots(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session without a computation", t, func() {
		svc := newSyncService()
		sess, _ := svc.CreateSession(ctx, "test", "127.0.0.1")

		Convey("Then the latest snapshot is not found", func() {
			_, err := svc.LatestSnapshot(ctx, sess.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			_, err = svc.SuggestedPlanet(ctx, sess.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then an unknown session is reported as such", func() {
			_, err := svc.LatestSnapshot(ctx, model.NewSessionID())
			So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("When a technology game is computed", func() {
			complete(ctx, svc, sess.ID, "space_explorer", 90, 60)
			_, err := svc.ComputeAffinity(ctx, sess.ID)
			So(err, ShouldBeNil)

			p, err := svc.SuggestedPlanet(ctx, sess.ID)
			So(err, ShouldBeNil)

			Convey("Then the technology planet is unlocked", func() {
				So(p.Planet.Name, ShouldEqual, "Planeta Sigma")
				So(*p.DominantDomain, ShouldEqual, model.Technology)
				So(p.UnlockPercentage, ShouldEqual, 13)
				So(p.Reasoning, ShouldContainSubstring, "technology")
				So(p.DomainScores.Technology, ShouldEqual, 64)
			})
		})

		Convey("When the computation had no games", func() {
			_, err := svc.ComputeAffinity(ctx, sess.ID)
			So(err, ShouldBeNil)

			p, err := svc.SuggestedPlanet(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(p.Planet, ShouldBeNil)
			So(p.UnlockPercentage, ShouldEqual, 0)
		})
	})
}

func TestService_Insights(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session with a slow science-free run", t, func() {
		svc := newSyncService()
		sess, _ := svc.CreateSession(ctx, "test", "127.0.0.1")
		complete(ctx, svc, sess.ID, "broken_bridge", 50, 170)

		in, err := svc.Insights(ctx, sess.ID)
		So(err, ShouldBeNil)

		Convey("Then engineering gets speed and volume tips", func() {
			So(len(in.Domains), ShouldEqual, 1)
			So(in.Domains[0].Domain, ShouldEqual, model.Engineering)
			So(in.Domains[0].Tips, ShouldResemble, []scoring.Tip{scoring.TipPracticeSpeed, scoring.TipPlayMore})
		})

		Convey("Then no snapshot is written", func() {
			_, err := svc.LatestSnapshot(ctx, sess.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Events(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session", t, func() {
		svc := newSyncService()
		sess, _ := svc.CreateSession(ctx, "test", "127.0.0.1")

		Convey("When a completion carries a client event id", func() {
			in := types.Completion{
				SessionID:        sess.ID,
				GameID:           "number_puzzle",
				Score:            70,
				TimeSpentSeconds: 80,
				ClientEventID:    "evt-1",
			}
			first, err := svc.CompleteGame(ctx, in)
			So(err, ShouldBeNil)
			So(first.Duplicate, ShouldBeFalse)
			So(first.EventID, ShouldNotBeEmpty)

			replay, err := svc.CompleteGame(ctx, in)
			So(err, ShouldBeNil)

			Convey("Then the replay is acknowledged as a duplicate", func() {
				So(replay.Duplicate, ShouldBeTrue)
				So(replay.ClientEventID, ShouldEqual, "evt-1")
			})

			Convey("Then the counters only moved once", func() {
				view, _ := svc.GetSession(ctx, sess.ID)
				So(view.CompletedGames, ShouldEqual, 1)
				So(view.TotalScore, ShouldEqual, 70)
			})

			Convey("Then another session may reuse the id", func() {
				other, _ := svc.CreateSession(ctx, "test", "127.0.0.1")
				in.SessionID = other.ID
				a, err := svc.CompleteGame(ctx, in)
				So(err, ShouldBeNil)
				So(a.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When a completion is out of bounds", func() {
			for _, in := range []types.Completion{
				{SessionID: sess.ID, GameID: "number_puzzle", Score: -1},
				{SessionID: sess.ID, GameID: "number_puzzle", Score: 1001},
				{SessionID: sess.ID, GameID: "number_puzzle", TimeSpentSeconds: 86401},
				{SessionID: sess.ID, GameID: "number_puzzle", HintsUsed: 101},
			} {
				_, err := svc.CompleteGame(ctx, in)
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			}
		})

		Convey("When the game is unknown", func() {
			_, err := svc.CompleteGame(ctx, types.Completion{SessionID: sess.ID, GameID: "chess"})
			So(errors.Is(err, model.ErrUnknownGame), ShouldBeTrue)
		})

		Convey("When the session is unknown", func() {
			_, err := svc.StartGame(ctx, "number_puzzle", model.NewSessionID())
			So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("When recording raw events", func() {
			_, err := svc.StartGame(ctx, "space_explorer", sess.ID)
			So(err, ShouldBeNil)
			_, err = svc.RecordEvent(ctx, types.RawEvent{
				SessionID: sess.ID,
				GameID:    "space_explorer",
				Type:      "hint_used",
				Data:      map[string]any{"level": 2},
			})
			So(err, ShouldBeNil)

			Convey("Then completions are rejected", func() {
				_, err := svc.RecordEvent(ctx, types.RawEvent{
					SessionID: sess.ID,
					GameID:    "space_explorer",
					Type:      "game_completed",
				})
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})

			Convey("Then unknown types are rejected", func() {
				_, err := svc.RecordEvent(ctx, types.RawEvent{
					SessionID: sess.ID,
					GameID:    "space_explorer",
					Type:      "game_paused",
				})
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})

			Convey("Then the history lists them newest first", func() {
				h, err := svc.History(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(len(h), ShouldEqual, 2)
				So(h[0].Type, ShouldEqual, model.EventHintUsed)
				So(h[1].Type, ShouldEqual, model.EventGameStarted)
			})

			Convey("Then they do not count as completions", func() {
				view, _ := svc.GetSession(ctx, sess.ID)
				So(view.CompletedGames, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Sessions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session with several completions", t, func() {
		svc := newSyncService()
		sess, err := svc.CreateSession(ctx, "agent", "10.0.0.1")
		So(err, ShouldBeNil)
		So(sess.CreatedAt, ShouldEqual, sess.LastActivity)

		complete(ctx, svc, sess.ID, "broken_bridge", 40, 100)
		complete(ctx, svc, sess.ID, "number_puzzle", 90, 60)
		complete(ctx, svc, sess.ID, "green_invention", 60, 140)
		complete(ctx, svc, sess.ID, "broken_bridge", 80, 80)

		Convey("Then completed games are deduplicated and newest first", func() {
			games, err := svc.CompletedGames(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(len(games), ShouldEqual, 3)
			So(games[0].GameID, ShouldEqual, model.BrokenBridge)
			So(games[0].Score, ShouldEqual, 80)
			So(games[1].GameID, ShouldEqual, model.GreenInvention)
			So(games[2].GameID, ShouldEqual, model.NumberPuzzle)
			So(games[2].Name, ShouldEqual, "Puzzle de Números")
		})

		Convey("Then stats average over the final completions per domain", func() {
			stats, err := svc.SessionStats(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(stats.CompletedGames, ShouldEqual, 4)
			So(stats.TotalScore, ShouldEqual, 270)
			So(stats.UniqueGames, ShouldEqual, 3)
			So(len(stats.Domains), ShouldEqual, 2)
			So(stats.Domains[0].Domain, ShouldEqual, model.Mathematics)
			So(stats.Domains[1].Domain, ShouldEqual, model.Engineering)
			So(stats.Domains[1].GamesPlayed, ShouldEqual, 2)
			So(stats.Domains[1].AverageScore, ShouldAlmostEqual, 70, 1e-9)
			So(stats.Domains[1].AverageTimeSpent, ShouldAlmostEqual, 110, 1e-9)
		})

		Convey("When touching the session", func() {
			before, _ := svc.GetSession(ctx, sess.ID)
			after, err := svc.TouchSession(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(after.LastActivity.After(before.LastActivity), ShouldBeTrue)
		})

		Convey("When touching an unknown session", func() {
			_, err := svc.TouchSession(ctx, model.NewSessionID())
			So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Catalog(t *testing.T) {
	Convey("Given the default catalog", t, func() {
		svc := newSyncService()

		Convey("Then four games and four planets are listed", func() {
			So(len(svc.Games()), ShouldEqual, 4)
			planets := svc.Planets()
			So(len(planets), ShouldEqual, 4)
			So(planets[0].Domain, ShouldEqual, model.Mathematics)
			So(planets[3].Name, ShouldEqual, "Planeta Kappa")
		})

		Convey("Then a single game resolves by id", func() {
			g, err := svc.Game("space_explorer")
			So(err, ShouldBeNil)
			So(g.Domain, ShouldEqual, model.Technology)

			_, err = svc.Game("Space Explorer")
			So(errors.Is(err, model.ErrInvalidIdentifier), ShouldBeTrue)
		})
	})
}

// stallingStore holds its first InsertEvent until release is closed and
// then fails it as unavailable. Later inserts go straight through.
type stallingStore struct {
	repository.Store
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) InsertEvent(ctx context.Context, e *model.GameEvent) error {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-s.release
		return fmt.Errorf("insert: %w", model.ErrStoreUnavailable)
	}
	return s.Store.InsertEvent(ctx, e)
}

func TestService_RetryDuringFailedWrite(t *testing.T) {
	ctx := context.Background()

	Convey("Given a completion whose first write stalls and then fails", t, func() {
		store := &stallingStore{
			Store:   repository.NewMemoryStore(),
			entered: make(chan struct{}),
			release: make(chan struct{}),
		}
		svc := newSyncService(service.WithStore(store))
		sess, err := svc.CreateSession(ctx, "test", "127.0.0.1")
		So(err, ShouldBeNil)

		in := types.Completion{
			SessionID:        sess.ID,
			GameID:           "number_puzzle",
			Score:            90,
			TimeSpentSeconds: 60,
			ClientEventID:    "evt-retry",
		}
		firstErr := make(chan error, 1)
		go func() {
			_, err := svc.CompleteGame(ctx, in)
			firstErr <- err
		}()
		<-store.entered

		Convey("When the client retries before the first write finishes", func() {
			retry, retryErr := svc.CompleteGame(ctx, in)
			close(store.release)
			failed := <-firstErr

			Convey("Then the retry is stored instead of acknowledged as a duplicate", func() {
				So(retryErr, ShouldBeNil)
				So(retry.Duplicate, ShouldBeFalse)
				So(errors.Is(failed, model.ErrStoreUnavailable), ShouldBeTrue)

				view, err := svc.GetSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(view.CompletedGames, ShouldEqual, 1)
				So(view.TotalScore, ShouldEqual, 90)
			})

			Convey("Then a later replay is a duplicate", func() {
				again, err := svc.CompleteGame(ctx, in)
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
			})
		})
	})
}
