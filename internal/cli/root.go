// Package cli implements the xsteal terminal commands.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	app "github.com/okian/xsteal/internal/app"
	"github.com/okian/xsteal/pkg/logger"
)

// Set by the linker at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Color modes.
const (
	colorAuto = "auto"
	colorYes  = "yes"
	colorNo   = "no"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	output   string
	color    string
	logLevel string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "xsteal",
		Short:         "Estimate the chance a stolen-base attempt is thrown out.",
		Long:          `xsteal scores stolen-base attempts from pitcher, runner and catcher measurements and tracks the tokens earned over a rolling window.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return g.apply()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.output, "output", "o", OutputTable, "output format: table or json")
	pf.StringVar(&g.color, "color", colorAuto, "colorize output: auto, yes or no")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level for service messages on stderr")

	root.AddCommand(
		newEstimateCmd(g),
		newScoreCmd(g),
		newSimulateCmd(g),
		newVariantsCmd(g),
		newLoadCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (g *globals) apply() error {
	switch g.output {
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, g.output)
	}

	switch g.color {
	case colorYes:
		color.NoColor = false
	case colorNo:
		color.NoColor = true
	case colorAuto:
	default:
		return fmt.Errorf("%w: color %q", ErrInvalidFlag, g.color)
	}

	return logger.SetLevelString(g.logLevel)
}

// startService runs an in-process service whose logs go to the command's stderr.
func startService(cmd *cobra.Command, opts ...app.Option) (*app.Service, error) {
	log, err := logger.New(cmd.ErrOrStderr(), logger.FormatText)
	if err != nil {
		return nil, err
	}
	svc := app.New(append([]app.Option{app.WithLogger(log.Named("cli"))}, opts...)...)
	if err := svc.Start(cmd.Context()); err != nil {
		return nil, err
	}
	return svc, nil
}

func (g *globals) isJSON() bool { return g.output == OutputJSON }

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
