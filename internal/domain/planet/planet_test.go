package planet_test

import (
	"errors"
	"testing"

	"github.com/okian/affinity/internal/domain/model"
	planet "github.com/okian/affinity/internal/domain/planet"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecommend(t *testing.T) {
	Convey("Given each domain", t, func() {
		want := map[model.Domain]string{
			model.Mathematics: "Planeta Alfa",
			model.Science:     "Planeta Delta",
			model.Technology:  "Planeta Sigma",
			model.Engineering: "Planeta Kappa",
		}
		for d, name := range want {
			p, err := planet.Recommend(d)
			So(err, ShouldBeNil)
			So(p.Name, ShouldEqual, name)
			So(p.Domain, ShouldEqual, d)
			So(p.Careers, ShouldNotBeEmpty)
		}
	})

	Convey("Given no dominant domain", t, func() {
		p, err := planet.Recommend(0)
		So(err, ShouldBeNil)
		So(p, ShouldBeNil)

		p, err = planet.RecommendName("")
		So(err, ShouldBeNil)
		So(p, ShouldBeNil)
	})

	Convey("Given an unknown domain", t, func() {
		_, err := planet.Recommend(model.Domain(7))
		So(errors.Is(err, model.ErrUnknownDomain), ShouldBeTrue)

		p, err := planet.RecommendName("unknown_domain")
		So(errors.Is(err, model.ErrUnknownDomain), ShouldBeTrue)
		So(p, ShouldBeNil)

		Convey("Then it never falls back to the mathematics planet", func() {
			_, err := planet.RecommendName("matemáticas")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a returned recommendation", t, func() {
		p, _ := planet.Recommend(model.Science)
		So(p.Careers[0], ShouldEqual, "Física")
		p.Careers[0] = "Alquimia"

		again, _ := planet.Recommend(model.Science)
		So(again.Careers[0], ShouldEqual, "Física")
	})
}

func TestAll(t *testing.T) {
	Convey("Given the planet table", t, func() {
		all := planet.All()
		So(len(all), ShouldEqual, model.DomainCount)
		for i, d := range model.Domains {
			So(all[i].Domain, ShouldEqual, d)
		}
	})
}
