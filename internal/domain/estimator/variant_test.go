package estimator_test

import (
	"errors"
	"testing"

	"github.com/okian/xsteal/internal/domain/estimator"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVariants_Registry(t *testing.T) {
	Convey("Given the built-in variants", t, func() {
		all := estimator.Variants()

		Convey("Then classic and extended are listed in name order", func() {
			So(len(all), ShouldEqual, 2)
			So(all[0].Name(), ShouldEqual, estimator.Classic)
			So(all[1].Name(), ShouldEqual, estimator.Extended)
		})

		Convey("Then every variant's weights sum to one", func() {
			for _, v := range all {
				var sum float64
				for _, c := range v.Components() {
					So(c.Weight, ShouldBeGreaterThanOrEqualTo, 0)
					sum += c.Weight
				}
				So(sum, ShouldAlmostEqual, 1, 1e-9)
			}
		})

		Convey("Then every metric used has catalog info", func() {
			for _, v := range all {
				for _, name := range v.Metrics() {
					_, ok := estimator.Info(name)
					So(ok, ShouldBeTrue)
				}
			}
		})

		Convey("When looking up an unknown name", func() {
			_, err := estimator.Lookup("sabermetric")

			Convey("Then ErrUnknownVariant is returned", func() {
				So(errors.Is(err, estimator.ErrUnknownVariant), ShouldBeTrue)
			})
		})

		Convey("When mutating the components slice", func() {
			v := mustLookup(estimator.Classic)
			cs := v.Components()
			cs[0].Weight = 99

			Convey("Then the variant is unchanged", func() {
				So(v.Components()[0].Weight, ShouldEqual, 0.4)
			})
		})
	})
}

func TestNewVariant_Validation(t *testing.T) {
	Convey("Given custom component sets", t, func() {
		ok := estimator.Component{Metric: estimator.JumpQuality, Direction: estimator.HigherIsBetter, Pivot: 0, Span: 100, Weight: 1}

		Convey("When the set is valid", func() {
			v, err := estimator.NewVariant("jump-only", ok)

			Convey("Then the variant estimates from jump quality alone", func() {
				So(err, ShouldBeNil)
				p, err := estimator.Estimate(v, estimator.Metrics{estimator.JumpQuality: 40})
				So(err, ShouldBeNil)
				So(p, ShouldAlmostEqual, 0.4, 1e-12)
			})
		})

		Convey("When weights do not sum to one", func() {
			bad := ok
			bad.Weight = 0.7
			_, err := estimator.NewVariant("short", bad)
			So(errors.Is(err, estimator.ErrInvalidVariant), ShouldBeTrue)
		})

		Convey("When a weight is negative", func() {
			neg := ok
			neg.Weight = -0.5
			other := estimator.Component{Metric: estimator.RunnerSpeed, Direction: estimator.HigherIsBetter, Pivot: 25, Span: 5, Weight: 1.5}
			_, err := estimator.NewVariant("negative", neg, other)
			So(errors.Is(err, estimator.ErrInvalidVariant), ShouldBeTrue)
		})

		Convey("When a span is zero", func() {
			flat := ok
			flat.Span = 0
			_, err := estimator.NewVariant("flat", flat)
			So(errors.Is(err, estimator.ErrInvalidVariant), ShouldBeTrue)
		})

		Convey("When a metric repeats", func() {
			half := ok
			half.Weight = 0.5
			_, err := estimator.NewVariant("dup", half, half)
			So(errors.Is(err, estimator.ErrInvalidVariant), ShouldBeTrue)
		})

		Convey("When the name is empty", func() {
			_, err := estimator.NewVariant("", ok)
			So(errors.Is(err, estimator.ErrInvalidVariant), ShouldBeTrue)
		})
	})
}
