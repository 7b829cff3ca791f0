package tracker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/grid"
	"codeberg.org/mutker/carbonwise/internal/meter"
	"codeberg.org/mutker/carbonwise/internal/runlog"
	"codeberg.org/mutker/carbonwise/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spyMeter struct {
	started, stopped int
	co2eKg           float64
}

func (m *spyMeter) Start(context.Context) error {
	m.started++
	return nil
}

func (m *spyMeter) Stop() (float64, error) {
	m.stopped++
	return m.co2eKg, nil
}

type spyRecorder struct {
	records  []*runlog.Record
	err      error
	disabled bool
}

func (r *spyRecorder) Record(_ context.Context, rec *runlog.Record) error {
	r.records = append(r.records, rec)
	return r.err
}

func (*spyRecorder) Close() error { return nil }

func (r *spyRecorder) CountByRunName(_ context.Context, name string) (int, error) {
	n := 0
	for _, rec := range r.records {
		if rec.RunName == name {
			n++
		}
	}
	return n, nil
}

func (r *spyRecorder) IsEnabled() bool { return !r.disabled }

func ptr(f float64) *float64 { return &f }

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func newTracker(t *testing.T, meters meter.Factory, opts ...tracker.Option) (*tracker.Tracker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run_log.jsonl")
	opts = append([]tracker.Option{tracker.WithClock(steppingClock(250 * time.Millisecond))}, opts...)
	tr := tracker.New(tracker.Config{PriceEURPerKWh: 0.25}, meters, runlog.NewWriter(path), opts...)
	return tr, path
}

func loadOne(t *testing.T, path string) runlog.Record {
	t.Helper()
	records, err := runlog.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0]
}

func TestMeasureDirectEnergy(t *testing.T) {
	tr, path := newTracker(t, meter.NewStaticFactory(0.002, ptr(0.025)))

	got, err := tracker.Measure(context.Background(), tr, tracker.Options{
		RunName:  "baseline",
		Requests: 5,
	}, func(context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)

	rec := loadOne(t, path)
	assert.Equal(t, "baseline", rec.RunName)
	assert.Len(t, rec.RunID, 36)
	assert.Equal(t, 0.025, rec.EnergyKWh)
	assert.Equal(t, 25.0, rec.EnergyWh)
	assert.Equal(t, 0.002, rec.CO2eKg)
	assert.Equal(t, 2.0, rec.CO2eG)
	assert.Equal(t, 250.0, rec.LatencyMs)
	assert.Equal(t, 5, rec.Requests)
	assert.Equal(t, 5.0, rec.SCIWhPerReq)
	assert.Nil(t, rec.GridFactorUsed)
	assert.Nil(t, rec.CarbonBudgetWh)
	assert.False(t, rec.BudgetExceeded)
	assert.Equal(t, tracker.DefaultNotes, rec.Meta["notes"])
	assert.Equal(t, tracker.OutcomeOK, rec.Meta["outcome"])
	assert.Equal(t, runlog.SchemaVersion, rec.Meta["schema_version"])
	assert.Equal(t, "static", rec.Meta["meter"])
}

func TestMeasureInfersEnergy(t *testing.T) {
	tr, path := newTracker(t, meter.NewStaticFactory(0.002, nil))

	err := tr.Do(context.Background(), tracker.Options{
		Meta: map[string]any{"region": "europe-west9"},
	}, func(context.Context) error { return nil })
	require.NoError(t, err)

	rec := loadOne(t, path)
	assert.Equal(t, tracker.DefaultRunName, rec.RunName)
	assert.Equal(t, 0.025, rec.EnergyKWh)
	require.NotNil(t, rec.GridFactorUsed)
	assert.Equal(t, 80.0, *rec.GridFactorUsed)
	assert.Equal(t, "europe-west9", rec.Meta["region"])
}

func TestMeasureCountryOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_log.jsonl")
	tr := tracker.New(tracker.Config{PriceEURPerKWh: 0.25, CountryISO: "FR"}, meter.NewStaticFactory(0.008, nil), runlog.NewWriter(path))

	require.NoError(t, tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return nil }))
	rec := loadOne(t, path)
	require.NotNil(t, rec.GridFactorUsed)
	assert.Equal(t, 80.0, *rec.GridFactorUsed)
	assert.Equal(t, 0.1, rec.EnergyKWh)
}

func TestMeasureConfiguredCountryWithCustomGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_log.jsonl")
	tr := tracker.New(
		tracker.Config{PriceEURPerKWh: 0.25, CountryISO: "FR"},
		meter.NewStaticFactory(0.008, nil),
		runlog.NewWriter(path),
		tracker.WithGrid(grid.NewResolver("")),
	)

	require.NoError(t, tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return nil }))
	rec := loadOne(t, path)
	require.NotNil(t, rec.GridFactorUsed)
	assert.Equal(t, 80.0, *rec.GridFactorUsed)
	assert.Equal(t, 0.1, rec.EnergyKWh)
}

func TestMeasureMeterStopFailure(t *testing.T) {
	factory := func(meter.Options) (meter.Meter, error) {
		return &meter.Static{EmissionsKg: 1, StopErr: assert.AnError}, nil
	}
	tr, path := newTracker(t, factory)

	require.NoError(t, tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return nil }))

	rec := loadOne(t, path)
	assert.Zero(t, rec.CO2eKg)
	assert.Zero(t, rec.EnergyKWh)
	require.NotNil(t, rec.GridFactorUsed)
}

func TestMeasureMeterStartFailure(t *testing.T) {
	factory := func(meter.Options) (meter.Meter, error) {
		return &meter.Static{EmissionsKg: 1, StartErr: assert.AnError}, nil
	}
	tr, path := newTracker(t, factory)

	require.NoError(t, tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return nil }))

	rec := loadOne(t, path)
	assert.Zero(t, rec.CO2eKg)
	assert.Equal(t, "none", rec.Meta["meter"])
}

func TestMeasureWorkloadError(t *testing.T) {
	spy := &spyMeter{co2eKg: 0.003}
	tr, path := newTracker(t, func(meter.Options) (meter.Meter, error) { return spy, nil })

	got, err := tracker.Measure(context.Background(), tr, tracker.Options{RunName: "optimized"},
		func(context.Context) (int, error) {
			return 7, assert.AnError
		})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, spy.stopped)

	rec := loadOne(t, path)
	assert.Equal(t, tracker.OutcomeFailed, rec.Meta["outcome"])
	assert.Equal(t, assert.AnError.Error(), rec.Meta["error"])
	assert.Equal(t, 0.003, rec.CO2eKg)
}

func TestMeasurePanicReleasesMeter(t *testing.T) {
	spy := &spyMeter{}
	tr, path := newTracker(t, func(meter.Options) (meter.Meter, error) { return spy, nil })

	assert.PanicsWithValue(t, "boom", func() {
		_ = tr.Do(context.Background(), tracker.Options{}, func(context.Context) error {
			panic("boom")
		})
	})

	assert.Equal(t, 1, spy.started)
	assert.Equal(t, 1, spy.stopped)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMeasureStopsMeterOnce(t *testing.T) {
	spy := &spyMeter{}
	tr, _ := newTracker(t, func(meter.Options) (meter.Meter, error) { return spy, nil })

	require.NoError(t, tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return nil }))
	assert.Equal(t, 1, spy.stopped)
}

func TestMeasureBudgetAndRequests(t *testing.T) {
	tr, path := newTracker(t, meter.NewStaticFactory(0.01, ptr(0.12)))

	require.NoError(t, tr.Do(context.Background(), tracker.Options{
		Requests: 0,
		BudgetWh: ptr(100),
	}, func(context.Context) error { return nil }))

	rec := loadOne(t, path)
	assert.Equal(t, 1, rec.Requests)
	assert.Equal(t, 120.0, rec.EnergyWh)
	assert.Equal(t, 120.0, rec.SCIWhPerReq)
	require.NotNil(t, rec.CarbonBudgetWh)
	assert.Equal(t, 100.0, *rec.CarbonBudgetWh)
	assert.True(t, rec.BudgetExceeded)
	assert.Equal(t, 0.03, rec.CostEUR)
}

func TestMeasureEnvironmentMetaWins(t *testing.T) {
	tr, path := newTracker(t, meter.NewStaticFactory(0, nil))

	require.NoError(t, tr.Do(context.Background(), tracker.Options{
		Meta: map[string]any{"schema_version": "mine", "notes": "custom", "team": "infra"},
	}, func(context.Context) error { return nil }))

	rec := loadOne(t, path)
	assert.Equal(t, runlog.SchemaVersion, rec.Meta["schema_version"])
	assert.Equal(t, "custom", rec.Meta["notes"])
	assert.Equal(t, "infra", rec.Meta["team"])
	for _, k := range []string{"go_version", "platform", "cpu", "num_cpu", "hostname", "cwd", "carbonwise_version"} {
		assert.Contains(t, rec.Meta, k)
	}
}

func TestMeasureWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	tr := tracker.New(tracker.Config{}, meter.NewStaticFactory(0, nil), runlog.NewWriter(filepath.Join(blocker, "log.jsonl")))

	got, err := tracker.Measure(context.Background(), tr, tracker.Options{}, func(context.Context) (string, error) {
		return "kept", nil
	})
	assert.Equal(t, "kept", got)
	assert.True(t, errors.HasCode(err, errors.ErrIO))
}

func TestMeasureWriteFailureKeepsWorkloadError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	tr := tracker.New(tracker.Config{}, meter.NewStaticFactory(0, nil), runlog.NewWriter(filepath.Join(blocker, "log.jsonl")))

	err := tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, errors.HasCode(err, errors.ErrIO))
}

func TestMeasureRecorder(t *testing.T) {
	rec := &spyRecorder{err: assert.AnError}
	tr, path := newTracker(t, meter.NewStaticFactory(0, nil),
		tracker.WithRecorder(rec),
		tracker.WithIDGenerator(func() string { return "fixed-id" }))

	require.NoError(t, tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return nil }))

	require.Len(t, rec.records, 1)
	assert.Equal(t, "fixed-id", rec.records[0].RunID)
	assert.Equal(t, "fixed-id", loadOne(t, path).RunID)
}

func TestMeasureSkipsDisabledRecorder(t *testing.T) {
	rec := &spyRecorder{disabled: true}
	tr, path := newTracker(t, meter.NewStaticFactory(0, nil), tracker.WithRecorder(rec))

	require.NoError(t, tr.Do(context.Background(), tracker.Options{}, func(context.Context) error { return nil }))

	assert.Empty(t, rec.records)
	loadOne(t, path)
}

func TestMeasurePassesMeterOptions(t *testing.T) {
	var got meter.Options
	factory := func(opts meter.Options) (meter.Meter, error) {
		got = opts
		return &spyMeter{}, nil
	}
	tr, _ := newTracker(t, factory)

	require.NoError(t, tr.Do(context.Background(), tracker.Options{
		Meta:       map[string]any{"cloud_region": "eu-west-1"},
		CountryISO: "IE",
		Interval:   3 * time.Second,
	}, func(context.Context) error { return nil }))

	assert.Equal(t, meter.Options{Interval: 3 * time.Second, Region: "eu-west-1", CountryISO: "IE"}, got)
}
