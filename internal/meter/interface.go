// Package meter defines the energy/emissions meter consumed by the tracker and
// provides the host meter that reads RAPL, NVML and CPU-model energy counters.
package meter

import (
	"context"
	"time"
)

// Meter measures one window between Start and Stop. Stop reports the
// emissions of the window in kg CO2e.
type Meter interface {
	Start(ctx context.Context) error
	Stop() (float64, error)
}

// FinalEmissionsReporter is implemented by meters that expose a structured
// summary of the last completed window.
type FinalEmissionsReporter interface {
	FinalEmissionsData() (*EmissionsData, error)
}

// EnergyAccumulator is implemented by meters that keep a running energy total.
type EnergyAccumulator interface {
	TotalEnergy() (Energy, error)
}

// RawEmissionsReporter is implemented by meters that expose their summary as a
// loosely typed map. The energy, when present, is under "energy_consumed" in kWh.
type RawEmissionsReporter interface {
	RawEmissionsData() (map[string]any, error)
}

// Describer is implemented by meters that can name their active sources.
type Describer interface {
	Describe() string
}

// Options configures a meter for one measurement window.
type Options struct {
	Interval   time.Duration
	Region     string
	CountryISO string
}

// Factory creates a fresh meter for each measurement window.
type Factory func(opts Options) (Meter, error)

// EmissionsData summarizes a completed measurement window.
type EmissionsData struct {
	Timestamp      time.Time
	Duration       time.Duration
	Emissions      float64  // kg CO2e
	EmissionsRate  float64  // kg CO2e per second
	EnergyConsumed *float64 // kWh, nil when no energy source was available
	GridIntensity  float64  // gCO2e/kWh used for Emissions
	Region         string
	CountryISO     string
	Sources        []string
}

const joulesPerKWh = 3.6e6

// Energy is an amount of energy in joules.
type Energy float64

// KWh returns the energy in kilowatt-hours.
func (e Energy) KWh() float64 {
	return float64(e) / joulesPerKWh
}

// Wh returns the energy in watt-hours.
func (e Energy) Wh() float64 {
	return e.KWh() * 1000
}

// EnergyFromKWh converts kilowatt-hours to Energy.
func EnergyFromKWh(kwh float64) Energy {
	return Energy(kwh * joulesPerKWh)
}
