// Package tracker wraps a workload in a measurement window and appends one
// run record per invocation.
package tracker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"codeberg.org/mutker/carbonwise/internal/energy"
	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/grid"
	"codeberg.org/mutker/carbonwise/internal/kpi"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"codeberg.org/mutker/carbonwise/internal/meter"
	"codeberg.org/mutker/carbonwise/internal/runlog"
	"codeberg.org/mutker/carbonwise/internal/store"
	"github.com/google/uuid"
)

// Tracker measures workloads. Invocations are expected to run one at a
// time; each one owns its meter from start to stop.
type Tracker struct {
	cfg      Config
	meters   meter.Factory
	writer   *runlog.Writer
	recorder store.Recorder
	grid     *grid.Resolver
	now      func() time.Time
	newID    func() string
}

// New returns a Tracker that creates a meter per invocation with meters and
// appends records with writer.
func New(cfg Config, meters meter.Factory, writer *runlog.Writer, opts ...Option) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = meter.DefaultInterval
	}

	t := &Tracker{
		cfg:    cfg,
		meters: meters,
		writer: writer,
		grid:   grid.NewResolver(cfg.CountryISO),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.recorder != nil && !t.recorder.IsEnabled() {
		t.recorder = nil
	}

	return t
}

// Measure runs fn inside a measurement window and returns its result
// unchanged. A record is appended whether fn succeeds or returns an error;
// a failed append is joined to fn's error. If fn panics the meter is stopped
// and the panic propagates without a record.
func Measure[T any](ctx context.Context, t *Tracker, opts Options, fn func(context.Context) (T, error)) (T, error) {
	runName := opts.RunName
	if runName == "" {
		runName = DefaultRunName
	}
	runID := t.newID()
	meta := callerMeta(opts.Meta)

	country := opts.CountryISO
	if country == "" {
		country = t.cfg.CountryISO
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = t.cfg.Interval
	}

	s := t.startSession(ctx, meter.Options{
		Interval:   interval,
		Region:     energy.RegionHint(meta),
		CountryISO: country,
	})
	defer s.stop()

	start := t.now()
	result, err := fn(ctx)
	latency := t.now().Sub(start)

	co2eKg := s.stop()

	resolved := energy.NewResolver(t.grid).Resolve(s.handle(), co2eKg, meta, country)

	metrics := kpi.Derive(kpi.Input{
		EnergyKWh: resolved.EnergyKWh,
		CO2eKg:    co2eKg,
		LatencyMs: float64(latency) / float64(time.Millisecond),
		Requests:  opts.Requests,
		BudgetWh:  opts.BudgetWh,
	}, t.cfg.PriceEURPerKWh)

	env := EnvMeta(s.describe())
	if err != nil {
		env["outcome"] = OutcomeFailed
		env["error"] = err.Error()
	} else {
		env["outcome"] = OutcomeOK
	}

	rec := runlog.NewRecord(runID, runName, t.now(), metrics, resolved.GridFactorUsed, meta, env)

	if werr := t.write(ctx, rec); werr != nil {
		return result, errors.Join(err, werr)
	}

	return result, err
}

// Do measures a workload that has no result.
func (t *Tracker) Do(ctx context.Context, opts Options, fn func(context.Context) error) error {
	_, err := Measure(ctx, t, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

func (t *Tracker) write(ctx context.Context, rec *runlog.Record) error {
	if err := t.writer.Append(rec); err != nil {
		return err
	}

	logger.Debug().
		Str("run_id", rec.RunID).
		Str("run_name", rec.RunName).
		Float64("energy_wh", rec.EnergyWh).
		Float64("co2e_g", rec.CO2eG).
		Float64("latency_ms", rec.LatencyMs).
		Msg("Run recorded")

	if t.recorder != nil {
		if err := t.recorder.Record(ctx, rec); err != nil {
			logger.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to mirror run record")
		}
	}

	return nil
}

// session is one meter acquisition. A meter that fails to start is dropped
// and the window reports no emissions.
type session struct {
	m       meter.Meter
	stopped bool
	co2eKg  float64
}

func (t *Tracker) startSession(ctx context.Context, opts meter.Options) *session {
	s := &session{}
	if t.meters == nil {
		return s
	}

	m, err := t.meters(opts)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create meter, emissions recorded as 0")
		return s
	}
	if err := m.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to start meter, emissions recorded as 0")
		return s
	}
	s.m = m

	return s
}

// stop releases the meter once and returns the window's emissions, 0 when
// the meter failed.
func (s *session) stop() float64 {
	if s.stopped {
		return s.co2eKg
	}
	s.stopped = true

	if s.m == nil {
		return 0
	}

	co2eKg, err := s.m.Stop()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to stop meter, emissions recorded as 0")
		return 0
	}
	if co2eKg < 0 || math.IsNaN(co2eKg) || math.IsInf(co2eKg, 0) {
		logger.Warn().Float64("co2e_kg", co2eKg).Msg("Meter reported invalid emissions, recorded as 0")
		return 0
	}
	s.co2eKg = co2eKg

	return co2eKg
}

func (s *session) handle() meter.Meter {
	return s.m
}

func (s *session) describe() string {
	if s.m == nil {
		return "none"
	}
	if d, ok := s.m.(meter.Describer); ok {
		return d.Describe()
	}

	return strings.TrimPrefix(fmt.Sprintf("%T", s.m), "*")
}
