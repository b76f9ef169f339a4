package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	repository "github.com/okian/affinity/internal/adapters/repository"
	"github.com/okian/affinity/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// flakyStore fails Ping with an infrastructure error while broken is set.
type flakyStore struct {
	*repository.MemoryStore
	broken bool
	pings  int
}

func (f *flakyStore) Ping(ctx context.Context) error {
	f.pings++
	if f.broken {
		return fmt.Errorf("ping: %w", model.ErrStoreUnavailable)
	}
	return f.MemoryStore.Ping(ctx)
}

func TestBreakerStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a breaker around a healthy store", t, func() {
		inner := &flakyStore{MemoryStore: repository.NewMemoryStore()}
		b := repository.NewBreakerStore(inner,
			repository.WithBreakerName("test-store"),
			repository.WithMaxFailures(2),
			repository.WithOpenTimeout(time.Hour),
		)
		So(b.State(), ShouldEqual, "closed")

		Convey("When calls succeed they pass through", func() {
			sid := model.NewSessionID()
			So(b.CreateSession(ctx, newSession(sid)), ShouldBeNil)
			s, err := b.GetSession(ctx, sid)
			So(err, ShouldBeNil)
			So(s.ID, ShouldEqual, sid)

			events, err := b.QueryCompletedEvents(ctx, sid)
			So(err, ShouldBeNil)
			So(events, ShouldBeEmpty)
		})

		Convey("When domain errors repeat the breaker stays closed", func() {
			for i := 0; i < 5; i++ {
				_, err := b.GetSession(ctx, model.NewSessionID())
				So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
				_, err = b.GetSnapshot(ctx, model.NewSessionID())
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			}
			So(b.State(), ShouldEqual, "closed")
		})

		Convey("When infrastructure failures reach the threshold", func() {
			inner.broken = true
			So(errors.Is(b.Ping(ctx), model.ErrStoreUnavailable), ShouldBeTrue)
			So(errors.Is(b.Ping(ctx), model.ErrStoreUnavailable), ShouldBeTrue)

			Convey("Then the breaker opens and fails fast", func() {
				So(b.State(), ShouldEqual, "open")
				calls := inner.pings

				err := b.Ping(ctx)
				So(errors.Is(err, model.ErrStoreUnavailable), ShouldBeTrue)
				So(inner.pings, ShouldEqual, calls)

				_, err = b.GetSession(ctx, model.NewSessionID())
				So(errors.Is(err, model.ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}
