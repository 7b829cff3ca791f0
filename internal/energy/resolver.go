// Package energy resolves the energy consumed during a measurement window,
// reading it from the meter when possible and inferring it from emissions and
// grid intensity otherwise.
package energy

import (
	"math"
	"strconv"
	"strings"

	"codeberg.org/mutker/carbonwise/internal/grid"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"codeberg.org/mutker/carbonwise/internal/meter"
)

// StrategyInference names the grid-intensity inference path.
const StrategyInference = "grid_inference"

// regionKeys are the meta keys consulted, in order, for a region hint.
var regionKeys = []string{"region", "cloud_region", "provider_region"}

// Strategy extracts an energy reading in kWh from a meter. ok is false when
// the meter does not expose the reading in the shape the strategy expects.
type Strategy struct {
	Name    string
	Extract func(m meter.Meter) (kwh float64, ok bool)
}

// DefaultStrategies is the ordered fallback chain.
var DefaultStrategies = []Strategy{
	{Name: "final_emissions_data", Extract: fromFinalEmissionsData},
	{Name: "total_energy", Extract: fromTotalEnergy},
	{Name: "raw_emissions_data", Extract: fromRawEmissionsData},
}

// Result is a resolved energy reading. GridFactorUsed is set only when the
// energy was inferred from emissions.
type Result struct {
	EnergyKWh      float64
	GridFactorUsed *float64
	Strategy       string
}

type Resolver struct {
	grid       *grid.Resolver
	strategies []Strategy
}

// NewResolver returns a Resolver using DefaultStrategies.
func NewResolver(g *grid.Resolver) *Resolver {
	return &Resolver{grid: g, strategies: DefaultStrategies}
}

// WithStrategies returns a copy of r that uses the given chain.
func (r *Resolver) WithStrategies(strategies ...Strategy) *Resolver {
	c := *r
	c.strategies = strategies

	return &c
}

// Resolve returns the energy for a window that emitted co2eKg. The first
// strategy that yields a reading wins; a missing or non-positive reading
// falls through to inference as co2eKg*1000/gridFactor, with the grid factor
// resolved from the meta region keys and then countryHint.
func (r *Resolver) Resolve(m meter.Meter, co2eKg float64, meta map[string]any, countryHint string) Result {
	if m != nil {
		for _, s := range r.strategies {
			kwh, ok := s.Extract(m)
			if !ok {
				continue
			}
			if kwh > 0 {
				logger.Debug().Str("strategy", s.Name).Float64("energy_kwh", kwh).Msg("Energy read from meter")
				return Result{EnergyKWh: kwh, Strategy: s.Name}
			}
			break
		}
	}

	factor := r.grid.Resolve(RegionHint(meta), countryHint)

	var kwh float64
	if factor > 0 {
		kwh = co2eKg * 1000 / factor
	}

	logger.Debug().
		Str("strategy", StrategyInference).
		Float64("grid_factor", factor).
		Float64("energy_kwh", kwh).
		Msg("Energy inferred from emissions")

	return Result{EnergyKWh: kwh, GridFactorUsed: &factor, Strategy: StrategyInference}
}

// RegionHint returns the first non-empty region value in meta.
func RegionHint(meta map[string]any) string {
	for _, k := range regionKeys {
		if s, ok := meta[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}

	return ""
}

func fromFinalEmissionsData(m meter.Meter) (float64, bool) {
	r, ok := m.(meter.FinalEmissionsReporter)
	if !ok {
		return 0, false
	}

	data, err := r.FinalEmissionsData()
	if err != nil || data == nil || data.EnergyConsumed == nil {
		return 0, false
	}

	return finite(*data.EnergyConsumed)
}

func fromTotalEnergy(m meter.Meter) (float64, bool) {
	a, ok := m.(meter.EnergyAccumulator)
	if !ok {
		return 0, false
	}

	e, err := a.TotalEnergy()
	if err != nil {
		return 0, false
	}

	return finite(e.KWh())
}

func fromRawEmissionsData(m meter.Meter) (float64, bool) {
	r, ok := m.(meter.RawEmissionsReporter)
	if !ok {
		return 0, false
	}

	raw, err := r.RawEmissionsData()
	if err != nil || raw == nil {
		return 0, false
	}

	return toFloat(raw["energy_consumed"])
}

// toFloat accepts the numeric shapes a decoded map may carry.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}
