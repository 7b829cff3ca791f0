// Package runlog defines the run record and its append-only JSON-lines log.
package runlog

import (
	"time"

	"codeberg.org/mutker/carbonwise/internal/kpi"
	"github.com/goccy/go-json"
)

// SchemaVersion is stamped into every record's meta.
const SchemaVersion = "1.1.0"

// Record is one measured workload invocation.
type Record struct {
	RunID     string    `json:"run_id"`
	RunName   string    `json:"run_name"`
	Timestamp time.Time `json:"timestamp"`

	EnergyKWh float64 `json:"energy_kwh"`
	CO2eKg    float64 `json:"co2e_kg"`

	EnergyWh  float64 `json:"energy_wh"`
	CO2eG     float64 `json:"co2e_g"`
	LatencyMs float64 `json:"latency_ms"`

	Requests    int     `json:"requests"`
	SCIWhPerReq float64 `json:"sci_wh_per_req"`
	CostEUR     float64 `json:"cost_eur"`

	CarbonBudgetWh *float64 `json:"carbon_budget_wh"`
	BudgetExceeded bool     `json:"budget_exceeded"`

	// GridFactorUsed is set only when energy was inferred from emissions.
	GridFactorUsed *float64 `json:"grid_factor_gco2_per_kwh_used"`

	Meta map[string]any `json:"meta"`
}

// NewRecord builds a record from derived metrics, rounding them to record
// precision. envMeta is merged over meta and wins on key collisions.
func NewRecord(
	runID, runName string,
	at time.Time,
	m kpi.Metrics,
	gridFactorUsed *float64,
	meta, envMeta map[string]any,
) *Record {
	r := m.Rounded()

	return &Record{
		RunID:          runID,
		RunName:        runName,
		Timestamp:      at.UTC().Truncate(time.Second),
		EnergyKWh:      r.EnergyKWh,
		CO2eKg:         r.CO2eKg,
		EnergyWh:       r.EnergyWh,
		CO2eG:          r.CO2eG,
		LatencyMs:      r.LatencyMs,
		Requests:       r.Requests,
		SCIWhPerReq:    r.SCIWhPerReq,
		CostEUR:        r.CostEUR,
		CarbonBudgetWh: r.BudgetWh,
		BudgetExceeded: r.BudgetExceeded,
		GridFactorUsed: gridFactorUsed,
		Meta:           MergeMeta(meta, envMeta),
	}
}

// MergeMeta returns a new map holding meta overlaid with env.
func MergeMeta(meta, env map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+len(env))
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range env {
		out[k] = v
	}

	return out
}

// UnmarshalJSON accepts the legacy "ts" timestamp key.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		TS *time.Time `json:"ts"`
	}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.Timestamp.IsZero() && aux.TS != nil {
		r.Timestamp = *aux.TS
	}

	return nil
}
