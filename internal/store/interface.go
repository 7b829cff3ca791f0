// Package store mirrors run records into a local SQLite database.
package store

import (
	"context"

	"codeberg.org/mutker/carbonwise/internal/runlog"
)

// Recorder is the optional second sink for run records.
type Recorder interface {
	Record(ctx context.Context, rec *runlog.Record) error
	// CountByRunName returns how many records with runName are stored.
	CountByRunName(ctx context.Context, runName string) (int, error)
	Close() error
	IsEnabled() bool
}

// Repository defines the interface for run record storage
type Repository interface {
	Record(rec *runlog.Record) error
	CountByRunName(runName string) (int, error)
	Close() error
}
