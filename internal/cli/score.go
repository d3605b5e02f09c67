package cli

import (
	"github.com/spf13/cobra"
)

func newScoreCmd(g *globals) *cobra.Command {
	var (
		probability float64
		success     bool
	)

	cmd := &cobra.Command{
		Use:     "score",
		Short:   "Convert an xSteal probability and outcome into tokens.",
		Example: `  xsteal score --probability 0.535 --success`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := startService(cmd)
			if err != nil {
				return err
			}
			defer svc.Stop()

			s, err := svc.Score(cmd.Context(), probability, success)
			if err != nil {
				return err
			}
			if g.isJSON() {
				return writeJSON(out(cmd), s)
			}
			return renderScore(out(cmd), s)
		},
	}

	cmd.Flags().Float64VarP(&probability, "probability", "p", 0, "xSteal probability in [0,1]")
	cmd.Flags().BoolVar(&success, "success", false, "the runner was thrown out")
	_ = cmd.MarkFlagRequired("probability")
	return cmd
}
