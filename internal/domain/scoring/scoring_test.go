package scoring_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/okian/xsteal/internal/domain/estimator"
	scoring "github.com/okian/xsteal/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-9

func referenceMetrics() estimator.Metrics {
	return estimator.Metrics{
		estimator.PitcherTimeToPlate:   1.8,
		estimator.RunnerSpeed:          27.5,
		estimator.JumpQuality:          75,
		estimator.CatcherPopTime:       1.9,
		estimator.CatcherThrowVelocity: 82,
	}
}

func TestTokens(t *testing.T) {
	Convey("Given probabilities across [0,1]", t, func() {
		for i := 0; i <= 20; i++ {
			p := float64(i) / 20

			Convey("Then success adds up to one and failure negates for p="+formatP(p), func() {
				So(scoring.Tokens(p, true)+p, ShouldAlmostEqual, 1, tolerance)
				So(scoring.Tokens(p, false), ShouldEqual, -p)
				So(scoring.Tokens(p, true), ShouldBeBetweenOrEqual, -1, 1)
				So(scoring.Tokens(p, false), ShouldBeBetweenOrEqual, -1, 1)
			})
		}
	})

	Convey("Given the extremes", t, func() {
		So(scoring.Tokens(0, true), ShouldEqual, 1.0)
		So(scoring.Tokens(1, true), ShouldEqual, 0.0)
		So(scoring.Tokens(0, false), ShouldEqual, 0.0)
		So(scoring.Tokens(1, false), ShouldEqual, -1.0)
	})
}

func TestInMemoryScorer_Score(t *testing.T) {
	Convey("Given a new in-memory scorer", t, func() {
		scorer := scoring.NewInMemoryScorer()
		ctx := context.Background()

		Convey("When scoring a successful throw with the default variant", func() {
			res, err := scorer.Score(ctx, scoring.Input{Metrics: referenceMetrics(), WasSuccessful: true})

			Convey("Then the classic estimate and reward are returned", func() {
				So(err, ShouldBeNil)
				So(res.Variant, ShouldEqual, estimator.Classic)
				So(res.Probability, ShouldAlmostEqual, 0.535, tolerance)
				So(res.Tokens, ShouldAlmostEqual, 0.465, tolerance)
				So(len(res.Breakdown.Terms), ShouldEqual, 3)
			})
		})

		Convey("When scoring a failed attempt", func() {
			res, err := scorer.Score(ctx, scoring.Input{Metrics: referenceMetrics()})

			Convey("Then the penalty equals the probability", func() {
				So(err, ShouldBeNil)
				So(res.Tokens, ShouldAlmostEqual, -0.535, tolerance)
			})
		})

		Convey("When scoring a failed attempt with the extended variant", func() {
			res, err := scorer.Score(ctx, scoring.Input{Variant: estimator.Extended, Metrics: referenceMetrics()})

			Convey("Then the five-metric estimate is used", func() {
				So(err, ShouldBeNil)
				So(res.Variant, ShouldEqual, estimator.Extended)
				So(res.Probability, ShouldAlmostEqual, 0.4658333333, 1e-9)
				So(res.Tokens, ShouldAlmostEqual, -0.4658333333, 1e-9)
			})
		})

		Convey("When the variant is unknown", func() {
			_, err := scorer.Score(ctx, scoring.Input{Variant: "nope", Metrics: referenceMetrics()})

			Convey("Then ErrUnknownVariant is returned", func() {
				So(errors.Is(err, estimator.ErrUnknownVariant), ShouldBeTrue)
			})
		})

		Convey("When a metric is missing", func() {
			_, err := scorer.Score(ctx, scoring.Input{Metrics: estimator.Metrics{estimator.JumpQuality: 50}})

			Convey("Then ErrInvalidInput is returned", func() {
				So(errors.Is(err, estimator.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then it should return context error", func() {
				res, err := scorer.Score(cctx, scoring.Input{Metrics: referenceMetrics()})
				So(err, ShouldEqual, context.Canceled)
				So(res.Variant, ShouldEqual, "")
			})
		})
	})
}

func TestInMemoryScorer_Options(t *testing.T) {
	Convey("Given a scorer with custom options", t, func() {
		Convey("When the default variant is extended", func() {
			scorer := scoring.NewInMemoryScorer(scoring.WithDefaultVariant(estimator.Extended))

			Convey("Then inputs without a variant use it", func() {
				res, err := scorer.Score(context.Background(), scoring.Input{Metrics: referenceMetrics()})
				So(err, ShouldBeNil)
				So(res.Variant, ShouldEqual, estimator.Extended)
				So(scorer.DefaultVariant(), ShouldEqual, estimator.Extended)
			})
		})

		Convey("When an empty default is passed", func() {
			scorer := scoring.NewInMemoryScorer(scoring.WithDefaultVariant(""))

			Convey("Then classic stays the default", func() {
				So(scorer.DefaultVariant(), ShouldEqual, estimator.Classic)
			})
		})

		Convey("When a custom variant is registered", func() {
			jumpOnly, err := estimator.NewVariant("jump-only", estimator.Component{
				Metric: estimator.JumpQuality, Direction: estimator.HigherIsBetter, Pivot: 0, Span: 100, Weight: 1,
			})
			So(err, ShouldBeNil)
			scorer := scoring.NewInMemoryScorer(scoring.WithVariants(jumpOnly))

			Convey("Then it can be selected by name", func() {
				res, err := scorer.Score(context.Background(), scoring.Input{
					Variant:       "jump-only",
					Metrics:       estimator.Metrics{estimator.JumpQuality: 20},
					WasSuccessful: true,
				})
				So(err, ShouldBeNil)
				So(res.Probability, ShouldAlmostEqual, 0.2, tolerance)
				So(res.Tokens, ShouldAlmostEqual, 0.8, tolerance)
			})

			Convey("And the built-ins remain available", func() {
				_, err := scorer.Variant(estimator.Extended)
				So(err, ShouldBeNil)
			})
		})
	})
}

func formatP(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func TestInMemoryScorer_Variants(t *testing.T) {
	Convey("Given a scorer with one custom variant", t, func() {
		alpha, err := estimator.NewVariant("alpha", estimator.Component{
			Metric: estimator.RunnerSpeed, Direction: estimator.HigherIsBetter, Pivot: 25, Span: 5, Weight: 1,
		})
		So(err, ShouldBeNil)
		scorer := scoring.NewInMemoryScorer(scoring.WithVariants(alpha))

		Convey("Then all variants are listed by name", func() {
			names := []string{}
			for _, v := range scorer.Variants() {
				names = append(names, v.Name())
			}
			So(names, ShouldResemble, []string{"alpha", estimator.Classic, estimator.Extended})
		})
	})
}
