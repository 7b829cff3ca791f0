package report

import (
	"codeberg.org/mutker/carbonwise/internal/aggregate"
	"codeberg.org/mutker/carbonwise/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carbonwise"

type gauges struct {
	runs      *prometheus.GaugeVec
	energy    *prometheus.GaugeVec
	co2e      *prometheus.GaugeVec
	latency   *prometheus.GaugeVec
	sci       *prometheus.GaugeVec
	cost      *prometheus.GaugeVec
	reduction *prometheus.GaugeVec
}

func newGauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

func newGauges(reg prometheus.Registerer) *gauges {
	g := &gauges{
		runs:      newGauge("runs", "Number of recorded runs per run name.", "run_name"),
		energy:    newGauge("run_energy_kwh", "Mean energy per run in kWh.", "run_name"),
		co2e:      newGauge("run_co2e_kg", "Mean emissions per run in kg CO2e.", "run_name"),
		latency:   newGauge("run_latency_ms", "Mean workload latency in milliseconds.", "run_name"),
		sci:       newGauge("run_sci_wh_per_request", "Mean energy per request in Wh.", "run_name"),
		cost:      newGauge("run_cost_eur", "Mean electricity cost per run in EUR.", "run_name"),
		reduction: newGauge("reduction_percent", "Reduction of optimized against baseline in percent.", "metric"),
	}
	reg.MustRegister(g.runs, g.energy, g.co2e, g.latency, g.sci, g.cost, g.reduction)

	return g
}

// WriteTextfile exports the per-run-name means, and the reductions of s when
// s is not nil, in the Prometheus text format for the node exporter textfile
// collector.
func WriteTextfile(path string, groups aggregate.Groups, s *Summary) error {
	reg := prometheus.NewRegistry()
	g := newGauges(reg)

	for name, group := range groups {
		g.runs.WithLabelValues(name).Set(float64(group.N))
		g.energy.WithLabelValues(name).Set(group.EnergyKWh)
		g.co2e.WithLabelValues(name).Set(group.CO2eKg)
		g.latency.WithLabelValues(name).Set(group.LatencyMs)
		g.sci.WithLabelValues(name).Set(group.SCIWhPerReq)
		g.cost.WithLabelValues(name).Set(group.CostEUR)
	}

	if s != nil {
		for _, r := range s.Rows {
			g.reduction.WithLabelValues(r.Key).Set(r.ReductionPct)
		}
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.New().Wrap(errors.ErrIO, err)
	}

	return nil
}
