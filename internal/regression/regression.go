// Package regression compares a candidate run group against a baseline and
// decides the quality gate.
package regression

import (
	"codeberg.org/mutker/carbonwise/internal/aggregate"
	"codeberg.org/mutker/carbonwise/internal/errors"
)

// DefaultMaxRegressPct is the default allowed regression for latency and SCI.
const DefaultMaxRegressPct = 5.0

// Outcome is the tri-state gate result.
type Outcome int

const (
	Pass Outcome = iota
	Fail
	InsufficientData
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case InsufficientData:
		return "INSUFFICIENT DATA"
	default:
		return "UNKNOWN"
	}
}

// Thresholds are the maximum allowed regressions in percent.
type Thresholds struct {
	MaxLatencyRegressPct float64
	MaxSCIRegressPct     float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxLatencyRegressPct: DefaultMaxRegressPct,
		MaxSCIRegressPct:     DefaultMaxRegressPct,
	}
}

// Result is a gate evaluation.
type Result struct {
	Outcome           Outcome
	LatencyRegressPct float64
	SCIRegressPct     float64
	Thresholds        Thresholds
}

// RegressPct is the relative increase of candidate over baseline in
// percent, or 0 when baseline is not positive.
func RegressPct(baseline, candidate float64) float64 {
	if baseline > 0 {
		return 100 * (candidate - baseline) / baseline
	}

	return 0
}

// ReductionPct is the relative decrease of candidate below baseline in
// percent, or 0 when baseline is not positive.
func ReductionPct(baseline, candidate float64) float64 {
	if baseline > 0 {
		return 100 * (baseline - candidate) / baseline
	}

	return 0
}

// Evaluate gates candidate against baseline. When either group has no
// records the outcome is InsufficientData and an insufficient_data error is
// returned alongside it.
func Evaluate(baseline, candidate aggregate.Group, th Thresholds) (Result, error) {
	res := Result{Thresholds: th}

	if baseline.N == 0 || candidate.N == 0 {
		res.Outcome = InsufficientData
		return res, errors.New().WithData(errors.ErrInsufficientData, struct {
			Baseline  string
			Candidate string
		}{
			Baseline:  baseline.RunName,
			Candidate: candidate.RunName,
		})
	}

	res.LatencyRegressPct = RegressPct(baseline.LatencyMs, candidate.LatencyMs)
	res.SCIRegressPct = RegressPct(baseline.SCIWhPerReq, candidate.SCIWhPerReq)

	if res.LatencyRegressPct <= th.MaxLatencyRegressPct && res.SCIRegressPct <= th.MaxSCIRegressPct {
		res.Outcome = Pass
	} else {
		res.Outcome = Fail
	}

	return res, nil
}
