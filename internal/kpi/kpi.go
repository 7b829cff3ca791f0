// Package kpi derives the per-run key performance indicators from a resolved
// energy reading and the meter's emissions.
package kpi

import (
	"math"

	"github.com/cockroachdb/apd/v3"
)

// DefaultPrice is the electricity price in EUR per kWh.
const DefaultPrice = 0.25

// Decimal places applied at record construction.
const (
	PlacesEnergyKWh = 9
	PlacesCO2eKg    = 9
	PlacesEnergyWh  = 3
	PlacesCO2eG     = 3
	PlacesLatencyMs = 2
	PlacesSCI       = 3
	PlacesCost      = 4
)

// Input holds the measurements of one run.
type Input struct {
	EnergyKWh float64
	CO2eKg    float64
	LatencyMs float64
	Requests  float64
	// BudgetWh is the declared energy ceiling; nil when none was declared.
	BudgetWh *float64
}

// Metrics holds the derived indicators.
type Metrics struct {
	EnergyKWh      float64
	CO2eKg         float64
	EnergyWh       float64
	CO2eG          float64
	LatencyMs      float64
	Requests       int
	SCIWhPerReq    float64
	CostEUR        float64
	BudgetWh       *float64
	BudgetExceeded bool
}

// EffectiveRequests coerces a declared unit-of-work count to an integer of at
// least 1.
func EffectiveRequests(requests float64) int {
	if math.IsNaN(requests) || requests < 1 {
		return 1
	}
	if requests >= math.MaxInt32 {
		return math.MaxInt32
	}

	return max(1, int(math.Round(requests)))
}

// Derive computes the indicators at full precision. It never fails.
func Derive(in Input, priceEURPerKWh float64) Metrics {
	energyWh := in.EnergyKWh * 1000
	requests := EffectiveRequests(in.Requests)

	m := Metrics{
		EnergyKWh:   in.EnergyKWh,
		CO2eKg:      in.CO2eKg,
		EnergyWh:    energyWh,
		CO2eG:       in.CO2eKg * 1000,
		LatencyMs:   in.LatencyMs,
		Requests:    requests,
		SCIWhPerReq: energyWh / float64(requests),
		CostEUR:     in.EnergyKWh * priceEURPerKWh,
	}

	if in.BudgetWh != nil {
		budget := *in.BudgetWh
		m.BudgetWh = &budget
		m.BudgetExceeded = energyWh > budget
	}

	return m
}

// Rounded returns m with every field rounded to its record precision. The
// budget flag keeps the full-precision comparison.
func (m Metrics) Rounded() Metrics {
	r := m
	r.EnergyKWh = Round(m.EnergyKWh, PlacesEnergyKWh)
	r.CO2eKg = Round(m.CO2eKg, PlacesCO2eKg)
	r.EnergyWh = Round(m.EnergyWh, PlacesEnergyWh)
	r.CO2eG = Round(m.CO2eG, PlacesCO2eG)
	r.LatencyMs = Round(m.LatencyMs, PlacesLatencyMs)
	r.SCIWhPerReq = Round(m.SCIWhPerReq, PlacesSCI)
	r.CostEUR = Round(m.CostEUR, PlacesCost)

	return r
}

// Round rounds f to the given number of decimal places, half to even, on the
// shortest decimal representation of f. Non-finite values are returned as is.
func Round(f float64, places int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}

	var d apd.Decimal
	if _, err := d.SetFloat64(f); err != nil {
		return f
	}

	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfEven

	var result apd.Decimal
	if _, err := ctx.Quantize(&result, &d, -places); err != nil {
		return f
	}

	out, err := result.Float64()
	if err != nil {
		return f
	}
	if out == 0 {
		// Drop the sign of a rounded negative zero.
		return 0
	}

	return out
}
