package main

import (
	"fmt"

	"codeberg.org/mutker/carbonwise/internal/aggregate"
	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"codeberg.org/mutker/carbonwise/internal/regression"
	"codeberg.org/mutker/carbonwise/internal/runlog"
	"github.com/spf13/cobra"
)

func newGateCmd(a *app) *cobra.Command {
	var (
		baseline, optimized string
		th                  = regression.DefaultThresholds()
	)

	cmd := &cobra.Command{
		Use:   "gate [LOG]",
		Short: "Fail when latency or SCI regress beyond the limits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.LogPath
			if len(args) == 1 {
				path = args[0]
			}

			records, err := runlog.Load(path)
			if err != nil {
				return withExitCode(exitError, err)
			}

			groups := aggregate.Aggregate(records)
			b, o := groups.Get(baseline), groups.Get(optimized)
			logger.Debug().
				Str("log_path", path).
				Int("baseline_n", b.N).
				Int("optimized_n", o.N).
				Msg("Evaluating quality gate")

			res, err := regression.Evaluate(b, o, th)
			out := cmd.OutOrStdout()
			if err != nil {
				if errors.HasCode(err, errors.ErrInsufficientData) {
					fmt.Fprintln(out, "Missing baseline or optimized runs.")
					return withExitCode(exitInsufficient, nil)
				}
				return withExitCode(exitError, err)
			}

			fmt.Fprintf(out, "Latency regress: %.2f%% (limit %g%%)\n", res.LatencyRegressPct, th.MaxLatencyRegressPct)
			fmt.Fprintf(out, "SCI regress: %.2f%% (limit %g%%)\n", res.SCIRegressPct, th.MaxSCIRegressPct)
			fmt.Fprintln(out, "QUALITY GATE:", res.Outcome)

			if res.Outcome == regression.Fail {
				return withExitCode(exitFail, nil)
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&baseline, "baseline", "baseline", "baseline run name")
	f.StringVar(&optimized, "optimized", "optimized", "candidate run name")
	f.Float64Var(&th.MaxLatencyRegressPct, "max-latency-regress", regression.DefaultMaxRegressPct,
		"maximum allowed latency regression in percent")
	f.Float64Var(&th.MaxSCIRegressPct, "max-sci-regress", regression.DefaultMaxRegressPct,
		"maximum allowed SCI regression in percent")

	return cmd
}
