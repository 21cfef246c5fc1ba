package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/samcharles93/kerntune/internal/score"
)

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteTable writes one row per kernel for a terminal.
func WriteTable(w io.Writer, rep *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s\n", rep.RunID)
	fmt.Fprintln(tw, "KERNEL\tBEST\tJ\tP99 ns\tP99.9 ns\tP99 %\tP99.9 %\tSTDEV %\tSIZE x")
	for _, k := range rep.Kernels {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
			k.Kernel,
			k.Best.Params.String(),
			Score(k.Best.J),
			formatNS(k.Baseline.Stats.P99, k.Best.Stats.P99),
			formatNS(k.Baseline.Stats.P999, k.Best.Stats.P999),
			k.ImprovementP99,
			k.ImprovementP999,
			k.StdevDrop,
			k.SizeGrowth,
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report table: %w", err)
	}
	return nil
}

func formatNS(base, best float64) string {
	return fmt.Sprintf("%.0f -> %.0f", base, best)
}

// Score formats a J value, naming the infeasible sentinel.
func Score(j float64) string {
	if score.IsInfeasible(j) {
		return "infeasible"
	}
	return fmt.Sprintf("%.1f", Round2(j))
}
