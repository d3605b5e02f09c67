package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/xsteal/internal/domain/estimator"
)

// metricFlags binds one flag per known metric. Defaults are a typical attempt.
type metricFlags struct {
	pitcherTime   float64
	runnerSpeed   float64
	jumpQuality   float64
	popTime       float64
	throwVelocity float64
}

func (m *metricFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&m.pitcherTime, "pitcher-time", 1.8, "pitcher time to plate (s)")
	fs.Float64Var(&m.runnerSpeed, "runner-speed", 27.5, "runner speed (ft/s)")
	fs.Float64Var(&m.jumpQuality, "jump-quality", 75, "jump quality (0-100)")
	fs.Float64Var(&m.popTime, "pop-time", 1.9, "catcher pop time (s), extended only")
	fs.Float64Var(&m.throwVelocity, "throw-velocity", 82, "catcher throw velocity (mph), extended only")
}

func (m *metricFlags) metrics() estimator.Metrics {
	return estimator.Metrics{
		estimator.PitcherTimeToPlate:   m.pitcherTime,
		estimator.RunnerSpeed:          m.runnerSpeed,
		estimator.JumpQuality:          m.jumpQuality,
		estimator.CatcherPopTime:       m.popTime,
		estimator.CatcherThrowVelocity: m.throwVelocity,
	}
}

func newEstimateCmd(g *globals) *cobra.Command {
	var (
		mf      metricFlags
		variant string
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate xSteal for one attempt.",
		Example: `  xsteal estimate --pitcher-time 1.7 --runner-speed 28 --jump-quality 60
  xsteal estimate --variant extended --pop-time 1.95 --explain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := startService(cmd)
			if err != nil {
				return err
			}
			defer svc.Stop()

			est, err := svc.Estimate(cmd.Context(), variant, mf.metrics())
			if err != nil {
				return err
			}
			if g.isJSON() {
				if !explain {
					est.Terms = nil
				}
				return writeJSON(out(cmd), est)
			}
			return renderEstimate(out(cmd), est, explain)
		},
	}

	mf.register(cmd.Flags())
	cmd.Flags().StringVar(&variant, "variant", "", "estimator variant (default classic)")
	cmd.Flags().BoolVar(&explain, "explain", false, "show the per-metric breakdown")
	return cmd
}
