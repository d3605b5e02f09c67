package cli

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	app "github.com/okian/xsteal/internal/app"
	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/internal/domain/history"
	"github.com/okian/xsteal/internal/domain/types"
)

// pitchInterval spaces simulated attempts on the capture clock.
const pitchInterval = 25 * time.Second

// SimulationReport is the JSON shape of a simulate run.
type SimulationReport struct {
	Seed     uint64          `json:"seed"`
	Session  types.Session   `json:"session"`
	Attempts []types.Attempt `json:"attempts"`
}

func newSimulateCmd(g *globals) *cobra.Command {
	var (
		n        int
		seed     uint64
		variant  string
		capacity int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate random attempts and show the rolling history.",
		Long: `Draws metrics uniformly from each metric's nominal range, decides the outcome
with the estimated probability, and records every attempt in a session. The
history is printed most recent first.`,
		Example: `  xsteal simulate -n 25 --seed 7 --variant extended`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n < 0 {
				return fmt.Errorf("%w: -n must not be negative", ErrInvalidFlag)
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}

			rng := rand.New(rand.NewPCG(seed, seed))
			clock := steppedClock(time.Now(), pitchInterval)

			svc, err := startService(cmd, app.WithHistoryCapacity(capacity), app.WithClock(clock))
			if err != nil {
				return err
			}
			defer svc.Stop()

			ctx := cmd.Context()
			sess, err := svc.CreateSession(ctx, variant)
			if err != nil {
				return err
			}
			vs, err := svc.Variants(ctx)
			if err != nil {
				return err
			}
			names := metricsOf(vs, sess.Variant)

			for i := 0; i < n; i++ {
				m := drawMetrics(rng, names)
				est, err := svc.Estimate(ctx, sess.Variant, m)
				if err != nil {
					return err
				}
				if _, err := svc.RecordAttempt(ctx, sess.ID, "", m, rng.Float64() < est.Probability); err != nil {
					return err
				}
			}

			attempts, err := svc.History(ctx, sess.ID, true)
			if err != nil {
				return err
			}
			summary, err := svc.GetSession(ctx, sess.ID)
			if err != nil {
				return err
			}

			if g.isJSON() {
				return writeJSON(out(cmd), SimulationReport{Seed: seed, Session: summary, Attempts: attempts})
			}
			if _, err := fmt.Fprintf(out(cmd), "Variant: %s  Attempts: %d  Outs: %d  Tokens: %s  Seed: %d\n",
				summary.Variant, summary.Attempts, summary.Outs, FormatTokens(summary.TotalTokens), seed); err != nil {
				return err
			}
			return renderHistory(out(cmd), attempts)
		},
	}

	cmd.Flags().IntVarP(&n, "attempts", "n", 10, "number of attempts to simulate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().StringVar(&variant, "variant", "", "estimator variant (default classic)")
	cmd.Flags().IntVar(&capacity, "capacity", history.DefaultCapacity, "history window size")
	return cmd
}

// metricsOf returns the metric names the named variant reads.
func metricsOf(vs []types.Variant, name string) []estimator.MetricName {
	for _, v := range vs {
		if v.Name != name {
			continue
		}
		out := make([]estimator.MetricName, len(v.Metrics))
		for i, m := range v.Metrics {
			out[i] = estimator.MetricName(m.Metric)
		}
		return out
	}
	return nil
}

// drawMetrics samples each metric uniformly from its nominal range, snapped to its step.
func drawMetrics(rng *rand.Rand, names []estimator.MetricName) estimator.Metrics {
	m := make(estimator.Metrics, len(names))
	for _, name := range names {
		info, ok := estimator.Info(name)
		if !ok {
			continue
		}
		v := info.NominalMin + rng.Float64()*(info.NominalMax-info.NominalMin)
		if info.Step > 0 {
			v = math.Round(v/info.Step) * info.Step
		}
		m[name] = v
	}
	return m
}

func steppedClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(step)
		return t
	}
}
