package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	dedupe "github.com/okian/xsteal/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording attempt IDs", func() {
			d := dedupe.NewInMemoryDeduper()
			So(d.Size(), ShouldEqual, 0)

			Convey("And the ID is new", func() {
				seen := d.SeenAndRecord(ctx, "attempt-1")

				Convey("Then it should return false and record it", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the ID was already seen", func() {
				d.SeenAndRecord(ctx, "attempt-1")
				seen := d.SeenAndRecord(ctx, "attempt-1")

				Convey("Then it should return true without growing", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording IDs", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "attempt-1")
			d.Unrecord(ctx, "attempt-1")
			d.Unrecord(ctx, "missing")

			Convey("Then the ID can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "attempt-1"), ShouldBeFalse)
			})
		})

		Convey("When the deduper is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"a", "b", "c", "d"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}

			Convey("Then the oldest ID is forgotten first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})

			Convey("And an unrecorded ID frees its slot", func() {
				d.Unrecord(ctx, "c")
				So(d.SeenAndRecord(ctx, "e"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			})
		})

		Convey("When the deduper is unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("attempt-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, int64(n))
				So(d.SeenAndRecord(ctx, "attempt-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeClaims(t *testing.T) {
	Convey("Given a deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When an ID is claimed", func() {
			So(d.Claim(ctx, "s1/a1"), ShouldBeNil)

			Convey("Then a second claim fails until it is released", func() {
				err := d.Claim(ctx, "s1/a1")
				So(errors.Is(err, dedupe.ErrInFlight), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "s1/a1")
				So(d.Claim(ctx, "s1/a2"), ShouldBeNil)

				d.Release(ctx, "s1/a1")
				So(d.Claim(ctx, "s1/a1"), ShouldBeNil)
			})

			Convey("Then claims do not count as seen IDs", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "s1/a1"), ShouldBeFalse)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by many goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const goroutines = 10
		const perGoroutine = 100

		Convey("When the same IDs race from every goroutine", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("attempt-%d", j)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each ID is reported new exactly once", func() {
				So(fresh, ShouldEqual, perGoroutine)
				So(d.Size(), ShouldEqual, int64(perGoroutine))
			})
		})
	})
}

func TestDedupeEdgeCases(t *testing.T) {
	Convey("Given unusual IDs", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then the empty and very long IDs are handled", func() {
			long := strings.Repeat("a", 10000)
			So(d.SeenAndRecord(context.Background(), ""), ShouldBeFalse)
			So(d.SeenAndRecord(context.Background(), ""), ShouldBeTrue)
			So(d.SeenAndRecord(context.Background(), long), ShouldBeFalse)
			So(d.SeenAndRecord(context.Background(), long), ShouldBeTrue)
		})

		Convey("Then a max size of one keeps only the latest", func() {
			one := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))
			one.SeenAndRecord(context.Background(), "x")
			one.SeenAndRecord(context.Background(), "y")
			So(one.Size(), ShouldEqual, 1)
			So(one.SeenAndRecord(context.Background(), "y"), ShouldBeTrue)
		})
	})
}
