package meter

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
)

// Static reports fixed readings. EnergyKWh nil means the meter exposes no
// energy value and consumers fall back to inferring it from emissions.
type Static struct {
	EmissionsKg float64
	EnergyKWh   *float64
	StartErr    error
	StopErr     error

	mu      sync.Mutex
	running bool
	started time.Time
	final   *EmissionsData
}

// NewStaticFactory returns a Factory producing Static meters with the given
// readings.
func NewStaticFactory(emissionsKg float64, energyKWh *float64) Factory {
	return func(Options) (Meter, error) {
		return &Static{EmissionsKg: emissionsKg, EnergyKWh: energyKWh}, nil
	}
}

func (s *Static) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StartErr != nil {
		return errors.New().Wrap(ErrStart, s.StartErr)
	}
	if s.running {
		return errors.New().New(ErrAlreadyStarted)
	}

	s.running = true
	s.started = time.Now()

	return nil
}

func (s *Static) Stop() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StopErr != nil {
		s.running = false
		return 0, errors.New().Wrap(ErrStop, s.StopErr)
	}
	if !s.running {
		return 0, errors.New().New(ErrNotStarted)
	}

	s.running = false
	s.final = &EmissionsData{
		Timestamp:      time.Now().UTC(),
		Duration:       time.Since(s.started),
		Emissions:      s.EmissionsKg,
		EnergyConsumed: s.EnergyKWh,
		Sources:        []string{"static"},
	}

	return s.EmissionsKg, nil
}

func (s *Static) FinalEmissionsData() (*EmissionsData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.final == nil {
		return nil, errors.New().New(ErrNoFinalData)
	}
	d := *s.final

	return &d, nil
}

func (*Static) Describe() string {
	return "static"
}
