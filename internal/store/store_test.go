package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/kpi"
	"codeberg.org/mutker/carbonwise/internal/runlog"
	"codeberg.org/mutker/carbonwise/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, name string) *runlog.Record {
	m := kpi.Derive(kpi.Input{EnergyKWh: 0.01, CO2eKg: 0.001, LatencyMs: 10, Requests: 2}, kpi.DefaultPrice)
	return runlog.NewRecord(id, name, time.Now(), m, nil, map[string]any{"notes": "t"}, nil)
}

func TestNewDisabledIsNoop(t *testing.T) {
	rec, err := store.New(store.Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, rec.IsEnabled())
	assert.NoError(t, rec.Record(context.Background(), record("a", "baseline")))
	assert.NoError(t, rec.Close())
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := store.New(store.Config{Enabled: true})
	assert.True(t, errors.HasCode(err, store.ErrInvalidConfig))
}

func TestRepositoryRecordAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "carbonwise.db")
	repo, err := store.NewRepository(store.Config{DBPath: path, Enabled: true})
	require.NoError(t, err)

	require.NoError(t, repo.Record(record("a", "baseline")))
	require.NoError(t, repo.Record(record("b", "baseline")))
	require.NoError(t, repo.Record(record("c", "optimized")))

	n, err := repo.CountByRunName("baseline")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountByRunName("missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	// run_id is the primary key
	assert.True(t, errors.HasCode(repo.Record(record("a", "baseline")), store.ErrTransactionFailed))

	require.NoError(t, repo.Close())
}

func TestRepositoryRecordNil(t *testing.T) {
	repo, err := store.NewRepository(store.Config{DBPath: filepath.Join(t.TempDir(), "c.db"), Enabled: true})
	require.NoError(t, err)
	defer repo.Close()

	assert.True(t, errors.HasCode(repo.Record(nil), store.ErrInvalidRecord))
}

func TestSchemaMismatchRecreatesWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carbonwise.db")

	repo, err := store.NewRepository(store.Config{DBPath: path, Enabled: true})
	require.NoError(t, err)
	require.NoError(t, repo.Record(record("a", "baseline")))
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'))`)
	require.NoError(t, err)

	version, err := store.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 99, version)
	require.NoError(t, db.Close())

	repo, err = store.NewRepository(store.Config{DBPath: path, Enabled: true})
	require.NoError(t, err)
	defer repo.Close()

	n, err := repo.CountByRunName("baseline")
	require.NoError(t, err)
	assert.Zero(t, n)

	backups, err := filepath.Glob(filepath.Join(dir, "backups", "carbonwise_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestServiceRecordHonoursContext(t *testing.T) {
	rec, err := store.New(store.Config{DBPath: filepath.Join(t.TempDir(), "s.db"), Enabled: true})
	require.NoError(t, err)
	defer rec.Close()

	assert.True(t, rec.IsEnabled())
	require.NoError(t, rec.Record(context.Background(), record("a", "baseline")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.HasCode(rec.Record(ctx, record("b", "baseline")), store.ErrStorageAccess))
}

func TestServiceCountByRunName(t *testing.T) {
	rec, err := store.New(store.Config{DBPath: filepath.Join(t.TempDir(), "n.db"), Enabled: true})
	require.NoError(t, err)
	defer rec.Close()

	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, record("a", "baseline")))
	require.NoError(t, rec.Record(ctx, record("b", "baseline")))

	n, err := rec.CountByRunName(ctx, "baseline")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	noop, err := store.New(store.Config{})
	require.NoError(t, err)
	n, err = noop.CountByRunName(ctx, "baseline")
	require.NoError(t, err)
	assert.Zero(t, n)
}
