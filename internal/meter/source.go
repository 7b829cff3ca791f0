package meter

// Source is a cumulative energy counter.
type Source interface {
	// Name identifies the source in logs and emissions summaries.
	Name() string
	// Read returns the current counter value in joules.
	Read() (float64, error)
	// MaxRange is the value in joules at which the counter wraps to zero,
	// or 0 when it does not wrap.
	MaxRange() float64
	Close() error
}

// delta returns the energy accumulated between two readings of a counter.
func delta(prev, cur, maxRange float64) float64 {
	d := cur - prev
	if d < 0 && maxRange > 0 {
		d += maxRange
	}
	if d < 0 {
		return 0
	}

	return d
}
