package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"codeberg.org/mutker/carbonwise/internal/runlog"
	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db  *sql.DB
	cfg Config
	mu  sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.DBPath); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	logger.Debug().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Run store initialized")

	return &repository{db: db, cfg: cfg}, nil
}

func (r *repository) Record(rec *runlog.Record) error {
	errFactory := errors.New()

	if rec == nil {
		return errFactory.New(ErrInvalidRecord)
	}

	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return errFactory.Wrap(ErrInvalidRecord, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	values := []interface{}{
		rec.RunID,
		rec.RunName,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.EnergyKWh,
		rec.CO2eKg,
		rec.EnergyWh,
		rec.CO2eG,
		rec.LatencyMs,
		int64(rec.Requests),
		rec.SCIWhPerReq,
		rec.CostEUR,
		nullFloat(rec.CarbonBudgetWh),
		int64(boolToInt(rec.BudgetExceeded)),
		nullFloat(rec.GridFactorUsed),
		string(meta),
	}

	if _, err := tx.Exec(insertRunSQL, values...); err != nil {
		if err := tx.Rollback(); err != nil {
			logger.Debug().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	logger.Debug().Str("run_id", rec.RunID).Msg("Run mirrored to database")

	return nil
}

func (r *repository) CountByRunName(runName string) (int, error) {
	var n int
	if err := r.db.QueryRow(countByRunNameSQL, runName).Scan(&n); err != nil {
		return 0, errors.New().Wrap(ErrStorageAccess, err)
	}

	return n, nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	logger.Debug().Msg("Run store closed")

	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
