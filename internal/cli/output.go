package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/okian/xsteal/internal/domain/types"
)

const timeLayout = "15:04:05"

var (
	outColor  = color.New(color.FgGreen, color.Bold)
	safeColor = color.New(color.FgRed, color.Bold)
	gainColor = color.New(color.FgGreen)
	lossColor = color.New(color.FgRed)
	dimColor  = color.New(color.FgHiBlack)
)

// OutcomeLabel renders an attempt outcome the way the history list shows it.
func OutcomeLabel(wasSuccessful bool) string {
	if wasSuccessful {
		return "✅ Out"
	}
	return "❌ Safe"
}

// FormatTokens prints tokens to 3 decimals with a leading + for gains.
func FormatTokens(tokens float64) string {
	s := strconv.FormatFloat(tokens, 'f', 3, 64)
	if tokens > 0 {
		return "+" + s
	}
	return s
}

// FormatPercent prints a probability as a percentage to 1 decimal.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
}

func colorOutcome(wasSuccessful bool) string {
	if wasSuccessful {
		return outColor.Sprint(OutcomeLabel(true))
	}
	return safeColor.Sprint(OutcomeLabel(false))
}

func colorTokens(tokens float64) string {
	s := FormatTokens(tokens)
	switch {
	case tokens > 0:
		return gainColor.Sprint(s)
	case tokens < 0:
		return lossColor.Sprint(s)
	default:
		return dimColor.Sprint(s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func renderEstimate(w io.Writer, est types.Estimate, explain bool) error {
	if _, err := fmt.Fprintf(w, "Variant: %s\nxSteal:  %s\n", est.Variant, FormatPercent(est.Probability)); err != nil {
		return err
	}
	if !explain {
		return nil
	}

	rows := make([][]string, 0, len(est.Terms)+1)
	for _, t := range est.Terms {
		rows = append(rows, []string{
			t.Metric,
			strconv.FormatFloat(t.Raw, 'f', -1, 64),
			strconv.FormatFloat(t.Normalized, 'f', 3, 64),
			strconv.FormatFloat(t.Weight, 'f', 2, 64),
			strconv.FormatFloat(t.Contribution, 'f', 3, 64),
		})
	}
	return renderTable(w, []string{"Metric", "Raw", "Normalized", "Weight", "Contribution"}, rows)
}

func renderScore(w io.Writer, s types.Score) error {
	_, err := fmt.Fprintf(w, "%s  xSteal: %s  Tokens: %s\n",
		colorOutcome(s.WasSuccessful), FormatPercent(s.Probability), colorTokens(s.Tokens))
	return err
}

// renderHistory prints attempts in the order given.
func renderHistory(w io.Writer, attempts []types.Attempt) error {
	rows := make([][]string, 0, len(attempts))
	for i, a := range attempts {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			a.CapturedAt.Format(timeLayout),
			colorOutcome(a.WasSuccessful),
			colorTokens(a.Tokens),
			FormatPercent(a.Probability),
		})
	}
	return renderTable(w, []string{"#", "Time", "Result", "Tokens", "xSteal"}, rows)
}

func renderVariants(w io.Writer, vs []types.Variant) error {
	rows := [][]string{}
	for _, v := range vs {
		name := v.Name
		if v.Default {
			name += " (default)"
		}
		for _, m := range v.Metrics {
			rows = append(rows, []string{
				name,
				m.Metric,
				m.Unit,
				m.Direction,
				fmt.Sprintf("[%g, %g]", m.NominalMin, m.NominalMax),
				strconv.FormatFloat(m.Weight, 'f', 2, 64),
			})
		}
	}
	return renderTable(w, []string{"Variant", "Metric", "Unit", "Direction", "Nominal", "Weight"}, rows)
}
