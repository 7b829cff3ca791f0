package tracker

import (
	"time"

	"codeberg.org/mutker/carbonwise/internal/grid"
	"codeberg.org/mutker/carbonwise/internal/store"
)

const (
	DefaultRunName = "run"
	DefaultNotes   = "CarbonWise tracker"
)

// Options describes one measured invocation.
type Options struct {
	RunName string
	// Requests is the declared unit-of-work count, coerced to an integer >= 1.
	Requests float64
	Meta     map[string]any
	// CountryISO is the country hint for grid intensity; the configured
	// override applies when empty.
	CountryISO string
	// Interval is the meter sampling period; the tracker default applies when zero.
	Interval time.Duration
	// BudgetWh is the optional energy ceiling for the run.
	BudgetWh *float64
}

// Config is the process-wide tracker configuration.
type Config struct {
	PriceEURPerKWh float64
	CountryISO     string
	Interval       time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecorder adds an optional second sink.
func WithRecorder(r store.Recorder) Option {
	return func(t *Tracker) {
		t.recorder = r
	}
}

// WithGrid replaces the grid resolver built from Config.CountryISO.
func WithGrid(g *grid.Resolver) Option {
	return func(t *Tracker) {
		t.grid = g
	}
}

// WithClock replaces time.Now for record timestamps and latency.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(newID func() string) Option {
	return func(t *Tracker) {
		t.newID = newID
	}
}
