package meter

import (
	"context"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/grid"
	"codeberg.org/mutker/carbonwise/internal/logger"
)

// DefaultInterval is the sampling period used when Options.Interval is unset.
const DefaultInterval = time.Second

// HostConfig selects and parameterizes the host energy sources.
type HostConfig struct {
	// Sources lists source names in order: "rapl", "nvml", "cpu".
	Sources []string
	// PowercapRoot overrides DefaultPowercapRoot.
	PowercapRoot string
	CPU          CPUModel
	Grid         *grid.Resolver
}

// NewHostFactory returns a Factory that opens the configured sources for
// every measurement window. The cpu model is skipped when a RAPL zone is
// readable since both cover the CPU package.
func NewHostFactory(cfg HostConfig) Factory {
	return func(opts Options) (Meter, error) {
		return NewHost(openSources(cfg), cfg.Grid, opts), nil
	}
}

func openSources(cfg HostConfig) []Source {
	var (
		sources []Source
		hasRAPL bool
	)

	for _, name := range cfg.Sources {
		switch strings.ToLower(name) {
		case "rapl":
			rapl, err := NewRAPLSources(cfg.PowercapRoot)
			if err != nil {
				logger.Debug().Err(err).Str("source", name).Msg("Energy source unavailable")
				continue
			}
			sources = append(sources, rapl...)
			hasRAPL = true
		case "nvml":
			src, err := NewNVMLSource()
			if err != nil {
				logger.Debug().Err(err).Str("source", name).Msg("Energy source unavailable")
				continue
			}
			sources = append(sources, src)
		case "cpu":
			if hasRAPL {
				continue
			}
			sources = append(sources, NewCPUModelSource(cfg.CPU))
		default:
			logger.Warn().Str("source", name).Msg("Unknown energy source")
		}
	}

	if hasRAPL {
		filtered := sources[:0]
		for _, s := range sources {
			if s.Name() != "cpu" {
				filtered = append(filtered, s)
			}
		}
		sources = filtered
	}

	return sources
}

// Host samples cumulative energy counters of the local machine and converts
// the energy of the window to emissions with the resolved grid intensity.
type Host struct {
	sources  []Source
	grid     *grid.Resolver
	opts     Options
	interval time.Duration

	mu      sync.Mutex
	running bool
	started time.Time
	last    []float64
	total   []float64
	active  []bool
	final   *EmissionsData
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHost returns a Host over the given sources. The Host owns the sources
// and closes them on Stop.
func NewHost(sources []Source, resolver *grid.Resolver, opts Options) *Host {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Host{
		sources:  sources,
		grid:     resolver,
		opts:     opts,
		interval: interval,
	}
}

func (h *Host) Start(ctx context.Context) error {
	errFactory := errors.New()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return errFactory.New(ErrAlreadyStarted)
	}

	h.last = make([]float64, len(h.sources))
	h.total = make([]float64, len(h.sources))
	h.active = make([]bool, len(h.sources))
	for i, src := range h.sources {
		v, err := src.Read()
		if err != nil {
			logger.Debug().Err(err).Str("source", src.Name()).Msg("Energy source dropped")
			continue
		}
		h.last[i] = v
		h.active[i] = true
	}

	h.running = true
	h.started = time.Now()
	h.final = nil
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})

	go h.run(ctx, h.stopCh, h.doneCh)

	logger.Debug().
		Str("sources", h.Describe()).
		Dur("interval", h.interval).
		Msg("Meter started")

	return nil
}

func (h *Host) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			h.sample()
			h.mu.Unlock()
		}
	}
}

// sample folds the current readings into the totals. Callers hold h.mu.
func (h *Host) sample() {
	for i, src := range h.sources {
		if !h.active[i] {
			continue
		}
		v, err := src.Read()
		if err != nil {
			logger.Debug().Err(err).Str("source", src.Name()).Msg("Energy sample skipped")
			continue
		}
		h.total[i] += delta(h.last[i], v, src.MaxRange())
		h.last[i] = v
	}
}

// Stop ends the window and returns its emissions in kg CO2e.
func (h *Host) Stop() (float64, error) {
	errFactory := errors.New()

	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return 0, errFactory.New(ErrNotStarted)
	}
	stop, done := h.stopCh, h.doneCh
	h.mu.Unlock()

	close(stop)
	<-done

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sample()
	h.running = false

	var joules float64
	var names []string
	for i, src := range h.sources {
		if h.active[i] {
			joules += h.total[i]
			names = append(names, src.Name())
		}
	}

	for _, src := range h.sources {
		if err := src.Close(); err != nil {
			logger.Debug().Err(err).Str("source", src.Name()).Msg("Failed to close energy source")
		}
	}

	intensity := h.grid.Resolve(h.opts.Region, h.opts.CountryISO)
	duration := time.Since(h.started)
	data := &EmissionsData{
		Timestamp:     time.Now().UTC(),
		Duration:      duration,
		GridIntensity: intensity,
		Region:        h.opts.Region,
		CountryISO:    h.opts.CountryISO,
		Sources:       names,
	}

	if len(names) > 0 {
		kwh := Energy(joules).KWh()
		data.EnergyConsumed = &kwh
		data.Emissions = kwh * intensity / 1000
		if s := duration.Seconds(); s > 0 {
			data.EmissionsRate = data.Emissions / s
		}
	}
	h.final = data

	logger.Debug().
		Float64("joules", joules).
		Float64("co2e_kg", data.Emissions).
		Float64("grid_factor", intensity).
		Msg("Meter stopped")

	return data.Emissions, nil
}

// FinalEmissionsData returns the summary of the last completed window.
func (h *Host) FinalEmissionsData() (*EmissionsData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.final == nil {
		return nil, errors.New().New(ErrNoFinalData)
	}
	d := *h.final

	return &d, nil
}

// TotalEnergy returns the energy accumulated so far in the current or last
// window.
func (h *Host) TotalEnergy() (Energy, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.total == nil {
		return 0, errors.New().New(ErrNotStarted)
	}

	var joules float64
	for i := range h.total {
		if h.active[i] {
			joules += h.total[i]
		}
	}

	return Energy(joules), nil
}

// Describe names the meter and its sources, e.g. "host[rapl:package-0,nvml]".
func (h *Host) Describe() string {
	names := make([]string, 0, len(h.sources))
	for i, src := range h.sources {
		if h.active != nil && !h.active[i] {
			continue
		}
		names = append(names, src.Name())
	}

	return "host[" + strings.Join(names, ",") + "]"
}
