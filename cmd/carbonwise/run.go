package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"codeberg.org/mutker/carbonwise/internal/config"
	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/grid"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"codeberg.org/mutker/carbonwise/internal/meter"
	"codeberg.org/mutker/carbonwise/internal/pid"
	"codeberg.org/mutker/carbonwise/internal/region"
	"codeberg.org/mutker/carbonwise/internal/runlog"
	"codeberg.org/mutker/carbonwise/internal/store"
	"codeberg.org/mutker/carbonwise/internal/tracker"
	"github.com/spf13/cobra"
)

const (
	meterHost   = "host"
	meterStatic = "static"
)

type runFlags struct {
	name      string
	requests  int
	seconds   float64
	region    string
	budgetWh  float64
	meterKind string
	table     string
	meta      map[string]string
	staticKg  float64
	staticKWh float64
}

func newRunCmd(a *app) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Measure a CPU-burn workload and append it to the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rf.requests < 1 || rf.seconds < 0 {
				return withExitCode(exitError, errors.New().WithMessage(errors.ErrInvalidArgument,
					"--requests must be >= 1 and --seconds must be >= 0"))
			}

			g := grid.NewResolver(a.cfg.CountryISO)
			if rf.table != "" {
				table, err := region.LoadTable(rf.table)
				if err != nil {
					return withExitCode(exitError, err)
				}
				g = g.WithTables(table.Intensities(), nil)
			}

			meters, err := newMeterFactory(a.cfg, g, rf)
			if err != nil {
				return withExitCode(exitError, err)
			}

			if rf.meterKind == meterHost {
				lock := pid.DefaultPath()
				if err := pid.Write(lock); err != nil {
					return withExitCode(exitError, err)
				}
				defer func() {
					if err := pid.Remove(lock); err != nil {
						logger.Warn().Err(err).Str("path", lock).Msg("Failed to remove PID file")
					}
				}()
			}

			recorder, err := store.New(store.Config{
				DBPath:  a.cfg.Store.DBPath,
				Enabled: a.cfg.Store.Enabled,
			})
			if err != nil {
				return withExitCode(exitError, err)
			}
			defer func() {
				if err := recorder.Close(); err != nil {
					logger.Warn().Err(err).Msg("Failed to close store")
				}
			}()

			t := tracker.New(tracker.Config{
				PriceEURPerKWh: a.cfg.Price,
				CountryISO:     a.cfg.CountryISO,
				Interval:       a.cfg.Meter.Interval,
			}, meters, runlog.NewWriter(a.cfg.LogPath),
				tracker.WithRecorder(recorder),
				tracker.WithGrid(g),
			)

			opts := tracker.Options{
				RunName:  rf.name,
				Requests: float64(rf.requests),
				Meta:     runMeta(rf),
			}
			if cmd.Flags().Changed("budget-wh") {
				budget := rf.budgetWh
				opts.BudgetWh = &budget
			}

			perRequest := time.Duration(rf.seconds * float64(time.Second))
			err = t.Do(cmd.Context(), opts, func(ctx context.Context) error {
				for i := 0; i < rf.requests; i++ {
					if err := cpuBurn(ctx, perRequest); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return withExitCode(exitError, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded %s (%d requests) to %s\n", rf.name, rf.requests, a.cfg.LogPath)

			if recorder.IsEnabled() {
				n, err := recorder.CountByRunName(cmd.Context(), rf.name)
				if err != nil {
					logger.Warn().Err(err).Msg("Failed to count stored runs")
				} else {
					fmt.Fprintf(out, "Store %s holds %d %s runs\n", a.cfg.Store.DBPath, n, rf.name)
				}
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&rf.name, "name", "baseline", "run name")
	f.IntVar(&rf.requests, "requests", 30, "number of requests in the run")
	f.Float64Var(&rf.seconds, "seconds", 1.0, "CPU seconds burned per request")
	f.StringVar(&rf.region, "region", "", "cloud region recorded in meta and used for grid intensity")
	f.Float64Var(&rf.budgetWh, "budget-wh", 0, "energy budget for the run in Wh")
	f.StringVar(&rf.meterKind, "meter", meterHost, "meter backend (host, static)")
	f.StringVar(&rf.table, "table", "", "region factor table overriding the built-in grid intensities")
	f.StringToStringVar(&rf.meta, "meta", nil, "extra meta entries (key=value)")
	f.Float64Var(&rf.staticKg, "static-co2e-kg", 0, "emissions reported by the static meter")
	f.Float64Var(&rf.staticKWh, "static-energy-kwh", 0, "energy reported by the static meter")

	return cmd
}

func newMeterFactory(cfg *config.Config, g *grid.Resolver, rf runFlags) (meter.Factory, error) {
	switch rf.meterKind {
	case meterHost:
		return meter.NewHostFactory(meter.HostConfig{
			Sources: cfg.Meter.Sources,
			CPU: meter.CPUModel{
				PIdle: cfg.Meter.CPU.PIdle,
				PMax:  cfg.Meter.CPU.PMax,
				Gamma: cfg.Meter.CPU.Gamma,
			},
			Grid: g,
		}), nil
	case meterStatic:
		var energyKWh *float64
		if rf.staticKWh > 0 {
			energyKWh = &rf.staticKWh
		}
		return meter.NewStaticFactory(rf.staticKg, energyKWh), nil
	default:
		return nil, errors.New().WithData(errors.ErrInvalidArgument, rf.meterKind).
			WithMessage("unknown meter backend")
	}
}

func runMeta(rf runFlags) map[string]any {
	meta := make(map[string]any, len(rf.meta)+2)
	for k, v := range rf.meta {
		meta[k] = v
	}
	if rf.region != "" {
		meta["region"] = rf.region
	}
	meta["seconds_per_request"] = rf.seconds

	return meta
}

// cpuBurn keeps one core busy for d or until ctx is done.
func cpuBurn(ctx context.Context, d time.Duration) error {
	end := time.Now().Add(d)
	x := 0.0
	for i := 0; time.Now().Before(end); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		x = (x + 1.234567) * 1.000001
		x = math.Sin(x) * math.Cos(x)
	}
	_ = x

	return nil
}
