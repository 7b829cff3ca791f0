package meter

import (
	"math"
	"runtime"
	"sync"
	"syscall"
	"time"
)

// CPUModel holds the coefficients of the process CPU power model.
//   - PIdle/PMax: Watts
//   - Gamma: dimensionless (CPU nonlinearity)
type CPUModel struct {
	PIdle float64
	PMax  float64
	Gamma float64
}

// Power returns the modelled package power in W attributed to a process
// using the fraction u of the machine's CPU capacity. The process is charged
// its share u of idle power plus the nonlinear dynamic part.
func (m CPUModel) Power(u float64) float64 {
	u = math.Min(math.Max(u, 0), 1)
	return m.PIdle*u + (m.PMax-m.PIdle)*math.Pow(u, m.Gamma)
}

// cpuModelSource integrates modelled power over the process CPU time. It is
// the fallback when no hardware counter is readable.
type cpuModelSource struct {
	model   CPUModel
	numCPU  int
	now     func() time.Time
	cpuTime func() (time.Duration, error)

	mu      sync.Mutex
	lastAt  time.Time
	lastCPU time.Duration
	joules  float64
}

// NewCPUModelSource returns a source that estimates energy from this
// process's CPU usage.
func NewCPUModelSource(model CPUModel) Source {
	return newCPUModelSource(model, runtime.NumCPU(), time.Now, processCPUTime)
}

func newCPUModelSource(
	model CPUModel,
	numCPU int,
	now func() time.Time,
	cpuTime func() (time.Duration, error),
) *cpuModelSource {
	if model.PMax < model.PIdle {
		model.PMax = model.PIdle
	}
	if numCPU < 1 {
		numCPU = 1
	}

	return &cpuModelSource{
		model:   model,
		numCPU:  numCPU,
		now:     now,
		cpuTime: cpuTime,
	}
}

func (*cpuModelSource) Name() string {
	return "cpu"
}

func (s *cpuModelSource) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	cpu, err := s.cpuTime()
	if err != nil {
		return 0, err
	}

	if !s.lastAt.IsZero() {
		wall := at.Sub(s.lastAt).Seconds()
		if wall > 0 {
			u := (cpu - s.lastCPU).Seconds() / (wall * float64(s.numCPU))
			s.joules += s.model.Power(u) * wall
		}
	}

	s.lastAt = at
	s.lastCPU = cpu

	return s.joules, nil
}

func (*cpuModelSource) MaxRange() float64 {
	return 0
}

func (*cpuModelSource) Close() error {
	return nil
}

func processCPUTime() (time.Duration, error) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}

	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
