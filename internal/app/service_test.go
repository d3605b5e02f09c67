package service_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/xsteal/internal/adapters/repository"
	service "github.com/okian/xsteal/internal/app"
	"github.com/okian/xsteal/internal/domain/dedupe"
	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func referenceMetrics() estimator.Metrics {
	return estimator.Metrics{
		estimator.PitcherTimeToPlate:   1.8,
		estimator.RunnerSpeed:          27.5,
		estimator.JumpQuality:          75,
		estimator.CatcherPopTime:       1.9,
		estimator.CatcherThrowVelocity: 82,
	}
}

func startedService(opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithLogger(logger.Nop())}, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))
		defer svc.Stop()

		Convey("When it has not been started", func() {
			_, err := svc.CreateSession(context.Background(), "")
			_, scoreErr := svc.Score(context.Background(), 0.5, true)

			Convey("Then operations fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(scoreErr, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When started twice and stopped", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()

			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a service with an unknown default variant", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()), service.WithDefaultVariant("sabermetric"))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, estimator.ErrUnknownVariant), ShouldBeTrue)
		})
	})
}

func TestService_Estimate(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startedService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When estimating with the default variant", func() {
			est, err := svc.Estimate(ctx, "", referenceMetrics())

			Convey("Then the classic estimate is returned with terms", func() {
				So(err, ShouldBeNil)
				So(est.Variant, ShouldEqual, estimator.Classic)
				So(est.Probability, ShouldAlmostEqual, 0.535, 1e-9)
				So(len(est.Terms), ShouldEqual, 3)
			})
		})

		Convey("When estimating with an unknown variant", func() {
			_, err := svc.Estimate(ctx, "nope", referenceMetrics())
			So(errors.Is(err, estimator.ErrUnknownVariant), ShouldBeTrue)
		})

		Convey("When a metric is not finite", func() {
			m := referenceMetrics()
			m[estimator.JumpQuality] = math.NaN()
			_, err := svc.Estimate(ctx, estimator.Extended, m)
			So(errors.Is(err, estimator.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When listing variants", func() {
			vs, err := svc.Variants(ctx)

			Convey("Then the default is flagged", func() {
				So(err, ShouldBeNil)
				So(len(vs), ShouldEqual, 2)
				So(vs[0].Name, ShouldEqual, estimator.Classic)
				So(vs[0].Default, ShouldBeTrue)
				So(vs[1].Default, ShouldBeFalse)
			})
		})
	})
}

func TestService_Score(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New()

		Convey("Then valid probabilities are scored", func() {
			sc, err := svc.Score(context.Background(), 0.25, true)
			So(err, ShouldBeNil)
			So(sc.Tokens, ShouldEqual, 0.75)

			sc, err = svc.Score(context.Background(), 0.25, false)
			So(err, ShouldBeNil)
			So(sc.Tokens, ShouldEqual, -0.25)
		})

		Convey("Then out of range probabilities are rejected", func() {
			for _, p := range []float64{-0.1, 1.1, math.NaN()} {
				_, err := svc.Score(context.Background(), p, true)
				So(errors.Is(err, estimator.ErrInvalidInput), ShouldBeTrue)
			}
		})
	})
}

func TestService_Sessions(t *testing.T) {
	Convey("Given a started service with a small window", t, func() {
		fixed := time.Date(2024, 5, 1, 19, 5, 0, 0, time.UTC)
		svc := startedService(
			service.WithHistoryCapacity(3),
			service.WithMaxSessions(2),
			service.WithClock(func() time.Time { return fixed }),
		)
		defer svc.Stop()
		ctx := context.Background()

		sess, err := svc.CreateSession(ctx, "")
		So(err, ShouldBeNil)
		So(sess.Variant, ShouldEqual, estimator.Classic)
		So(sess.Capacity, ShouldEqual, 3)

		Convey("When attempts are recorded", func() {
			first, err := svc.RecordAttempt(ctx, sess.ID, "a1", referenceMetrics(), true)
			So(err, ShouldBeNil)
			_, err = svc.RecordAttempt(ctx, sess.ID, "a2", referenceMetrics(), false)
			So(err, ShouldBeNil)

			Convey("Then the results carry the estimate and reward", func() {
				So(first.Duplicate, ShouldBeFalse)
				So(first.Attempt.ID, ShouldEqual, "a1")
				So(first.Attempt.Outcome, ShouldEqual, "out")
				So(first.Attempt.Tokens, ShouldAlmostEqual, 0.465, 1e-9)
				So(first.Attempt.CapturedAt.Equal(fixed), ShouldBeTrue)
				So(len(first.Estimate.Terms), ShouldEqual, 3)
			})

			Convey("Then the summary totals the window", func() {
				got, err := svc.GetSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(got.Attempts, ShouldEqual, 2)
				So(got.Outs, ShouldEqual, 1)
				So(got.TotalTokens, ShouldAlmostEqual, 0.465-0.535, 1e-9)
			})

			Convey("Then history can be read in both orders", func() {
				oldest, err := svc.History(ctx, sess.ID, false)
				So(err, ShouldBeNil)
				So(oldest[0].ID, ShouldEqual, "a1")
				newest, err := svc.History(ctx, sess.ID, true)
				So(err, ShouldBeNil)
				So(newest[0].ID, ShouldEqual, "a2")
			})

			Convey("And the same attempt ID is sent again", func() {
				dup, err := svc.RecordAttempt(ctx, sess.ID, "a1", referenceMetrics(), false)

				Convey("Then it is reported as a duplicate and not appended", func() {
					So(err, ShouldBeNil)
					So(dup.Duplicate, ShouldBeTrue)
					So(dup.Attempt.ID, ShouldEqual, "a1")
					So(dup.Attempt.WasSuccessful, ShouldBeTrue)
					h, _ := svc.History(ctx, sess.ID, false)
					So(len(h), ShouldEqual, 2)
				})
			})

			Convey("And the window overflows", func() {
				_, _ = svc.RecordAttempt(ctx, sess.ID, "a3", referenceMetrics(), false)
				res, err := svc.RecordAttempt(ctx, sess.ID, "a4", referenceMetrics(), false)

				Convey("Then the oldest attempt is evicted", func() {
					So(err, ShouldBeNil)
					So(res.Evicted, ShouldBeTrue)
					h, _ := svc.History(ctx, sess.ID, false)
					So(len(h), ShouldEqual, 3)
					So(h[0].ID, ShouldEqual, "a2")
				})
			})
		})

		Convey("When an attempt is invalid", func() {
			_, err := svc.RecordAttempt(ctx, sess.ID, "bad", estimator.Metrics{}, true)

			Convey("Then nothing is stored and the ID can be retried", func() {
				So(errors.Is(err, estimator.ErrInvalidInput), ShouldBeTrue)
				res, err := svc.RecordAttempt(ctx, sess.ID, "bad", referenceMetrics(), true)
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the session variant is switched", func() {
			updated, err := svc.SetSessionVariant(ctx, sess.ID, estimator.Extended)
			So(err, ShouldBeNil)
			So(updated.Variant, ShouldEqual, estimator.Extended)

			res, err := svc.RecordAttempt(ctx, sess.ID, "", referenceMetrics(), false)

			Convey("Then new attempts use it", func() {
				So(err, ShouldBeNil)
				So(res.Attempt.Variant, ShouldEqual, estimator.Extended)
				So(res.Attempt.ID, ShouldNotBeEmpty)
			})

			Convey("And unknown variants are rejected", func() {
				_, err := svc.SetSessionVariant(ctx, sess.ID, "nope")
				So(errors.Is(err, estimator.ErrUnknownVariant), ShouldBeTrue)
			})
		})

		Convey("When too many sessions are created", func() {
			_, err := svc.CreateSession(ctx, estimator.Extended)
			So(err, ShouldBeNil)
			_, err = svc.CreateSession(ctx, "")

			Convey("Then the limit is enforced", func() {
				So(errors.Is(err, repository.ErrCapacityExceeded), ShouldBeTrue)
				So(svc.GetStats()["sessions"], ShouldEqual, 2)
			})
		})

		Convey("When the session is deleted", func() {
			So(svc.DeleteSession(ctx, sess.ID), ShouldBeNil)

			Convey("Then later calls report not found", func() {
				_, err := svc.GetSession(ctx, sess.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = svc.RecordAttempt(ctx, sess.ID, "x", referenceMetrics(), true)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = svc.History(ctx, sess.ID, true)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(svc.DeleteSession(ctx, sess.ID), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When creating a session with an unknown variant", func() {
			_, err := svc.CreateSession(ctx, "nope")
			So(errors.Is(err, estimator.ErrUnknownVariant), ShouldBeTrue)
		})
	})
}

func TestService_AttemptInFlight(t *testing.T) {
	Convey("Given a service whose first evaluation blocks", t, func() {
		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		svc := startedService(service.WithClock(func() time.Time {
			once.Do(func() {
				close(entered)
				<-release
			})
			return time.Date(2024, 5, 1, 19, 5, 0, 0, time.UTC)
		}))
		defer svc.Stop()
		ctx := context.Background()

		sess, err := svc.CreateSession(ctx, "")
		So(err, ShouldBeNil)

		record := func(m estimator.Metrics) <-chan error {
			done := make(chan error, 1)
			go func() {
				_, err := svc.RecordAttempt(ctx, sess.ID, "a1", m, true)
				done <- err
			}()
			<-entered
			return done
		}

		Convey("When a retry arrives before a failing first request ends", func() {
			first := record(estimator.Metrics{})
			_, retryErr := svc.RecordAttempt(ctx, sess.ID, "a1", referenceMetrics(), true)
			close(release)
			firstErr := <-first

			Convey("Then the retry is refused rather than acknowledged", func() {
				So(errors.Is(retryErr, dedupe.ErrInFlight), ShouldBeTrue)
				So(errors.Is(firstErr, estimator.ErrInvalidInput), ShouldBeTrue)
			})

			Convey("Then a later retry is recorded as new", func() {
				res, err := svc.RecordAttempt(ctx, sess.ID, "a1", referenceMetrics(), true)
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
				So(res.Attempt.ID, ShouldEqual, "a1")
			})
		})

		Convey("When a retry arrives after a successful first request", func() {
			first := record(referenceMetrics())
			close(release)
			So(<-first, ShouldBeNil)
			dup, err := svc.RecordAttempt(ctx, sess.ID, "a1", referenceMetrics(), false)

			Convey("Then it is acknowledged with the stored attempt", func() {
				So(err, ShouldBeNil)
				So(dup.Duplicate, ShouldBeTrue)
				So(dup.Attempt.ID, ShouldEqual, "a1")
				So(dup.Attempt.WasSuccessful, ShouldBeTrue)
			})
		})
	})
}

func TestService_StatsCounters(t *testing.T) {
	Convey("Given a service with a window of one", t, func() {
		svc := startedService(service.WithHistoryCapacity(1))
		defer svc.Stop()
		ctx := context.Background()

		before, _ := svc.GetStats()["historyEvictions"].(float64)

		sess, err := svc.CreateSession(ctx, "")
		So(err, ShouldBeNil)
		for i := 0; i < 3; i++ {
			_, err := svc.RecordAttempt(ctx, sess.ID, "", referenceMetrics(), true)
			So(err, ShouldBeNil)
		}

		Convey("Then the stats report the evictions from the metrics registry", func() {
			stats := svc.GetStats()
			after, ok := stats["historyEvictions"].(float64)
			So(ok, ShouldBeTrue)
			So(after-before, ShouldBeGreaterThanOrEqualTo, 2)
			So(stats["attemptsRecorded"], ShouldHaveSameTypeAs, float64(0))
		})
	})
}
