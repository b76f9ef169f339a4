package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/okian/affinity/internal/adapters/repository"
	"github.com/okian/affinity/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newSession(id string) *model.Session {
	return &model.Session{ID: id, CreatedAt: t0, LastActivity: t0, UserAgent: "test", IPAddress: "127.0.0.1"}
}

func completion(id, session string, g model.GameID, score int, at time.Time) *model.GameEvent {
	return &model.GameEvent{
		ID: id, SessionID: session, GameID: g, Type: model.EventGameCompleted,
		Score: score, TimeSpentSeconds: 60, HintsUsed: 1, CreatedAt: at,
	}
}

// contract exercises the behaviour every Store must share.
func contract(newStore func() repository.Store) {
	ctx := context.Background()
	store := newStore()
	Reset(func() { _ = store.Close() })

	sid := model.NewSessionID()
	So(store.CreateSession(ctx, newSession(sid)), ShouldBeNil)

	Convey("When reading sessions", func() {
		s, err := store.GetSession(ctx, sid)
		So(err, ShouldBeNil)
		So(s.ID, ShouldEqual, sid)
		So(s.CreatedAt.Equal(t0), ShouldBeTrue)
		So(s.UserAgent, ShouldEqual, "test")

		ok, err := store.SessionExists(ctx, sid)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		ok, err = store.SessionExists(ctx, model.NewSessionID())
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		_, err = store.GetSession(ctx, model.NewSessionID())
		So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
	})

	Convey("When touching a session", func() {
		later := t0.Add(time.Hour)
		So(store.TouchSession(ctx, sid, later), ShouldBeNil)
		s, _ := store.GetSession(ctx, sid)
		So(s.LastActivity.Equal(later), ShouldBeTrue)

		err := store.TouchSession(ctx, model.NewSessionID(), later)
		So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
	})

	Convey("When inserting events", func() {
		start := &model.GameEvent{
			ID: "e0", SessionID: sid, GameID: model.NumberPuzzle, Type: model.EventGameStarted,
			Data: map[string]any{"level": "1"}, CreatedAt: t0.Add(time.Second),
		}
		So(store.InsertEvent(ctx, start), ShouldBeNil)
		So(store.InsertEvent(ctx, completion("e1", sid, model.NumberPuzzle, 40, t0.Add(2*time.Second))), ShouldBeNil)
		So(store.InsertEvent(ctx, completion("e2", sid, model.NumberPuzzle, 90, t0.Add(3*time.Second))), ShouldBeNil)

		Convey("Then completions come back oldest first", func() {
			got, err := store.QueryCompletedEvents(ctx, sid)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].ID, ShouldEqual, "e1")
			So(got[1].ID, ShouldEqual, "e2")
			So(got[1].GameID, ShouldEqual, model.NumberPuzzle)
			So(got[1].Score, ShouldEqual, 90)
			So(got[1].HintsUsed, ShouldEqual, 1)
			So(got[1].CreatedAt.Equal(t0.Add(3*time.Second)), ShouldBeTrue)
		})

		Convey("Then history comes back newest first with data", func() {
			got, err := store.History(ctx, sid)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 3)
			So(got[0].ID, ShouldEqual, "e2")
			So(got[2].ID, ShouldEqual, "e0")
			So(got[2].Type, ShouldEqual, model.EventGameStarted)
			So(got[2].Data["level"], ShouldEqual, "1")
		})

		Convey("Then event data is not shared with callers", func() {
			start.Data["level"] = "caller"
			got, _ := store.History(ctx, sid)
			got[2].Data["level"] = "reader"

			again, err := store.History(ctx, sid)
			So(err, ShouldBeNil)
			So(again[2].Data["level"], ShouldEqual, "1")
		})

		Convey("Then the session counters count every completion", func() {
			s, _ := store.GetSession(ctx, sid)
			So(s.CompletedGames, ShouldEqual, 2)
			So(s.TotalScore, ShouldEqual, 130)
			So(s.LastActivity.Equal(t0.Add(3*time.Second)), ShouldBeTrue)
		})

		Convey("Then an unknown session is rejected", func() {
			err := store.InsertEvent(ctx, completion("e9", model.NewSessionID(), model.BrokenBridge, 10, t0))
			So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
		})
	})

	Convey("When a client event id is replayed", func() {
		first := completion("c1", sid, model.SpaceExplorer, 70, t0)
		first.ClientEventID = "client-1"
		So(store.InsertEvent(ctx, first), ShouldBeNil)

		replay := completion("c2", sid, model.SpaceExplorer, 70, t0.Add(time.Second))
		replay.ClientEventID = "client-1"
		err := store.InsertEvent(ctx, replay)

		Convey("Then it is a duplicate and nothing changes", func() {
			So(errors.Is(err, model.ErrDuplicateEvent), ShouldBeTrue)
			got, _ := store.QueryCompletedEvents(ctx, sid)
			So(len(got), ShouldEqual, 1)
			s, _ := store.GetSession(ctx, sid)
			So(s.CompletedGames, ShouldEqual, 1)
			So(s.TotalScore, ShouldEqual, 70)
		})

		Convey("Then the same client id is fine in another session", func() {
			other := model.NewSessionID()
			So(store.CreateSession(ctx, newSession(other)), ShouldBeNil)
			e := completion("c3", other, model.SpaceExplorer, 70, t0)
			e.ClientEventID = "client-1"
			So(store.InsertEvent(ctx, e), ShouldBeNil)
		})
	})

	Convey("When upserting snapshots", func() {
		_, err := store.GetSnapshot(ctx, sid)
		So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

		snap := &model.Snapshot{
			SessionID:          sid,
			Scores:             model.DomainScores{Mathematics: 64},
			Dominant:           model.Mathematics,
			Confidence:         model.ConfidenceVeryHigh,
			ConfidenceFraction: 0.125,
			TotalGames:         1,
			CalculatedAt:       t0,
		}
		So(store.UpsertSnapshot(ctx, snap), ShouldBeNil)

		replaced := &model.Snapshot{SessionID: sid, CalculatedAt: t0.Add(time.Minute)}
		So(store.UpsertSnapshot(ctx, replaced), ShouldBeNil)

		Convey("Then the whole row is replaced", func() {
			got, err := store.GetSnapshot(ctx, sid)
			So(err, ShouldBeNil)
			So(got.Scores, ShouldResemble, model.DomainScores{})
			So(got.Dominant, ShouldEqual, model.Domain(0))
			So(got.Confidence, ShouldEqual, model.Confidence(0))
			So(got.TotalGames, ShouldEqual, 0)
			So(got.CalculatedAt.Equal(t0.Add(time.Minute)), ShouldBeTrue)
		})

		Convey("Then a snapshot round-trips", func() {
			So(store.UpsertSnapshot(ctx, snap), ShouldBeNil)
			got, _ := store.GetSnapshot(ctx, sid)
			So(got.Dominant, ShouldEqual, model.Mathematics)
			So(got.Confidence, ShouldEqual, model.ConfidenceVeryHigh)
			So(got.ConfidenceFraction, ShouldAlmostEqual, 0.125, 1e-9)
			So(got.Scores.Mathematics, ShouldEqual, 64)
		})

		Convey("Then an unknown session is rejected", func() {
			err := store.UpsertSnapshot(ctx, &model.Snapshot{SessionID: model.NewSessionID(), CalculatedAt: t0})
			So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
		})
	})

	Convey("When pinging", func() {
		So(store.Ping(ctx), ShouldBeNil)
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		contract(func() repository.Store { return repository.NewMemoryStore() })
	})

	Convey("Given a closed memory store", t, func() {
		s := repository.NewMemoryStore()
		So(s.Close(), ShouldBeNil)
		err := s.Ping(context.Background())
		So(errors.Is(err, model.ErrStoreUnavailable), ShouldBeTrue)
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a sqlite store", t, func() {
		contract(func() repository.Store {
			s, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "affinity.db"))
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given a database reopened after writes", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "affinity.db")

		s, err := repository.OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		sid := model.NewSessionID()
		So(s.CreateSession(ctx, newSession(sid)), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		again, err := repository.OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		defer again.Close()

		ok, err := again.SessionExists(ctx, sid)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
	})
}
