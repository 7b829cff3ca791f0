// Package report renders baseline versus candidate summaries as markdown, a
// PDF document and a Prometheus textfile.
package report

import (
	"time"

	"codeberg.org/mutker/carbonwise/internal/aggregate"
	"codeberg.org/mutker/carbonwise/internal/regression"
)

// Row is one metric of the summary table.
type Row struct {
	// Key is the stable metric identifier used in exported labels.
	Key          string
	Metric       string
	Baseline     float64
	Optimized    float64
	ReductionPct float64
	// Precision is the number of decimals used for Baseline and Optimized.
	Precision int
}

// Summary compares two run groups.
type Summary struct {
	GeneratedAt time.Time
	Baseline    aggregate.Group
	Optimized   aggregate.Group
	Rows        []Row
}

// Build compares the baseline and optimized groups. Missing groups compare
// as all-zero.
func Build(groups aggregate.Groups, baseline, optimized string, at time.Time) Summary {
	b := groups.Get(baseline)
	o := groups.Get(optimized)

	row := func(key, metric string, bv, ov float64, precision int) Row {
		return Row{
			Key:          key,
			Metric:       metric,
			Baseline:     bv,
			Optimized:    ov,
			ReductionPct: regression.ReductionPct(bv, ov),
			Precision:    precision,
		}
	}

	return Summary{
		GeneratedAt: at.UTC().Truncate(time.Second),
		Baseline:    b,
		Optimized:   o,
		Rows: []Row{
			row("energy", "Energy (kWh)", b.EnergyKWh, o.EnergyKWh, 3),
			row("co2e", "CO₂e (kg)", b.CO2eKg, o.CO2eKg, 3),
			row("latency", "Latency (ms)", b.LatencyMs, o.LatencyMs, 1),
			row("sci", "SCI (Wh/req)", b.SCIWhPerReq, o.SCIWhPerReq, 1),
			row("cost", "Cost (€)", b.CostEUR, o.CostEUR, 4),
		},
	}
}
