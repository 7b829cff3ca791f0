package store

import (
	"context"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"codeberg.org/mutker/carbonwise/internal/runlog"
)

type service struct {
	repo Repository
}

type noopRecorder struct{}

// New returns the SQLite mirror, or a no-op Recorder when the store is
// disabled.
func New(cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Run store disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, rec *runlog.Record) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return s.repo.Record(rec)
}

func (s *service) CountByRunName(ctx context.Context, runName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.New().Wrap(ErrStorageAccess, err)
	}

	return s.repo.CountByRunName(runName)
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*service) IsEnabled() bool {
	return true
}

func (noopRecorder) Record(context.Context, *runlog.Record) error {
	return nil
}

func (noopRecorder) CountByRunName(context.Context, string) (int, error) {
	return 0, nil
}

func (noopRecorder) Close() error {
	return nil
}

func (noopRecorder) IsEnabled() bool {
	return false
}
