// Package aggregate groups run records by run name and averages their KPIs.
package aggregate

import "codeberg.org/mutker/carbonwise/internal/runlog"

// Group holds the mean of each numeric KPI across the records of one run
// name. A group with N == 0 has every mean at 0.
type Group struct {
	RunName     string
	N           int
	EnergyKWh   float64
	CO2eKg      float64
	EnergyWh    float64
	CO2eG       float64
	LatencyMs   float64
	Requests    float64
	SCIWhPerReq float64
	CostEUR     float64
}

// Groups maps run names to their aggregates.
type Groups map[string]Group

// Get returns the group for name, or an empty group when no record has it.
func (g Groups) Get(name string) Group {
	if group, ok := g[name]; ok {
		return group
	}

	return Group{RunName: name}
}

// Names returns the run names in first-seen order of records.
func Names(records []runlog.Record) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if !seen[r.RunName] {
			seen[r.RunName] = true
			names = append(names, r.RunName)
		}
	}

	return names
}

// Aggregate groups records by exact, case-sensitive run name.
func Aggregate(records []runlog.Record) Groups {
	byName := make(map[string][]runlog.Record)
	for _, r := range records {
		byName[r.RunName] = append(byName[r.RunName], r)
	}

	groups := make(Groups, len(byName))
	for name, rs := range byName {
		groups[name] = Summarize(name, rs)
	}

	return groups
}

// Summarize averages the records into a Group named name.
func Summarize(name string, records []runlog.Record) Group {
	g := Group{RunName: name, N: len(records)}
	if g.N == 0 {
		return g
	}

	for _, r := range records {
		g.EnergyKWh += r.EnergyKWh
		g.CO2eKg += r.CO2eKg
		g.EnergyWh += r.EnergyWh
		g.CO2eG += r.CO2eG
		g.LatencyMs += r.LatencyMs
		g.Requests += float64(r.Requests)
		g.SCIWhPerReq += r.SCIWhPerReq
		g.CostEUR += r.CostEUR
	}

	n := float64(g.N)
	g.EnergyKWh /= n
	g.CO2eKg /= n
	g.EnergyWh /= n
	g.CO2eG /= n
	g.LatencyMs /= n
	g.Requests /= n
	g.SCIWhPerReq /= n
	g.CostEUR /= n

	return g
}
