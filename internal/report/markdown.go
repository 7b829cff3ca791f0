package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
)

// Markdown renders the summary table with its notes.
func Markdown(s Summary) string {
	var b strings.Builder

	b.WriteString("# CarbonWise Report\n\n")
	fmt.Fprintf(&b, "_Generated: %s_\n\n", s.GeneratedAt.Format(time.RFC3339))
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "Runs: %s n=%d, %s n=%d\n\n", s.Baseline.RunName, s.Baseline.N, s.Optimized.RunName, s.Optimized.N)
	b.WriteString("| Metric | Baseline | Optimized | Reduction % |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, r := range s.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s%% |\n",
			r.Metric,
			FormatFixed(r.Baseline, r.Precision),
			FormatFixed(r.Optimized, r.Precision),
			FormatFixed(r.ReductionPct, 1),
		)
	}
	b.WriteString("\n## Notes\n")
	b.WriteString("- Values are means across runs with the same `run_name`.\n")
	b.WriteString("- SCI = (Wh per request).\n")
	b.WriteString("- Reduction % is (baseline - optimized) / baseline; negative values are regressions.\n")
	b.WriteString("- Cost uses `CARBONWISE_KWH_EUR` if set (default €0.25/kWh).\n")

	return b.String()
}

// FormatFixed formats f with prec decimals and never prints a negative zero.
func FormatFixed(f float64, prec int) string {
	s := strconv.FormatFloat(f, 'f', prec, 64)
	if strings.TrimLeft(s, "-0.") == "" {
		return strings.TrimPrefix(s, "-")
	}

	return s
}

// WriteText writes text to path, creating its directory.
func WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New().Wrap(errors.ErrIO, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return errors.New().Wrap(errors.ErrIO, err)
	}

	return nil
}
