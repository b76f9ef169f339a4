package types_test

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/planet"
	"github.com/okian/affinity/internal/domain/scoring"
	types "github.com/okian/affinity/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAffinityResultEncoding(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given an empty result", t, func() {
		res := types.AffinityResult{SessionID: "s", CalculatedAt: at}
		b, err := json.Marshal(res)
		So(err, ShouldBeNil)

		var m map[string]any
		So(json.Unmarshal(b, &m), ShouldBeNil)

		Convey("Then the absent values encode as null", func() {
			So(m, ShouldContainKey, "dominantDomain")
			So(m["dominantDomain"], ShouldBeNil)
			So(m["confidenceLabel"], ShouldBeNil)
			So(m["suggestedPlanet"], ShouldBeNil)
			So(m, ShouldNotContainKey, "breakdown")
			So(m["domainScores"], ShouldResemble, map[string]any{
				"mathematics": float64(0), "science": float64(0), "technology": float64(0), "engineering": float64(0),
			})
		})
	})

	Convey("Given a result with a dominant domain", t, func() {
		r, _ := scoring.Aggregate([]scoring.Play{{Domain: model.Mathematics, Score: 90, TimeSpentSeconds: 60}})
		p, _ := planet.Recommend(r.Dominant)
		res := types.AffinityResult{
			SessionID:          "s",
			DomainScores:       r.Scores,
			DominantDomain:     types.DomainPtr(r.Dominant),
			ConfidenceLabel:    types.ConfidencePtr(r.Confidence),
			ConfidenceFraction: r.ConfidenceFraction,
			SuggestedPlanet:    types.NewPlanetView(p),
			TotalGamesPlayed:   r.TotalGames,
			CalculatedAt:       at,
			Breakdown:          types.NewBreakdown(&r),
		}
		b, err := json.Marshal(res)
		So(err, ShouldBeNil)

		var m map[string]any
		So(json.Unmarshal(b, &m), ShouldBeNil)

		Convey("Then enums encode as their names", func() {
			So(m["dominantDomain"], ShouldEqual, "mathematics")
			So(m["confidenceLabel"], ShouldEqual, "very high")
			So(m["suggestedPlanet"].(map[string]any)["name"], ShouldEqual, "Planeta Alfa")
			So(len(m["breakdown"].([]any)), ShouldEqual, 1)
		})
	})
}

func TestPointers(t *testing.T) {
	Convey("Given zero enums", t, func() {
		So(types.DomainPtr(0), ShouldBeNil)
		So(types.ConfidencePtr(0), ShouldBeNil)
		So(*types.DomainPtr(model.Science), ShouldEqual, model.Science)
		So(types.NewPlanetView(nil), ShouldBeNil)
	})
}
