package cli

import (
	"github.com/spf13/cobra"
)

func newVariantsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List estimator variants with their metrics and weights.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := startService(cmd)
			if err != nil {
				return err
			}
			defer svc.Stop()

			vs, err := svc.Variants(cmd.Context())
			if err != nil {
				return err
			}
			if g.isJSON() {
				return writeJSON(out(cmd), vs)
			}
			return renderVariants(out(cmd), vs)
		},
	}
}
