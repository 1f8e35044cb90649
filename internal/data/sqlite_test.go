package data

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"CSU/internal/cipher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewSQLiteRepository(db, cipher.Default())
	require.NoError(t, repo.Bootstrap(context.Background()))
	return repo, db
}

func TestRecordAndLastSucceeded(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, repo.Record(ctx, Run{
		ID: "first", StartedAt: base, FinishedAt: base.Add(time.Second),
		Kind: "database", Backend: "sqlite", Status: "succeeded",
		NewConnectionString: "Data Source=a.db", OldConnectionString: "Data Source=old.db",
		OldDataProviderString: "provider-old", Targets: []string{"a.config", "b.config"},
	}))
	require.NoError(t, repo.Record(ctx, Run{
		ID: "second", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(2 * time.Minute),
		Kind: "database", Backend: "mysql", Status: "failed", Message: "script failed",
	}))

	run, err := repo.LastSucceeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", run.ID)
	assert.Equal(t, "Data Source=old.db", run.OldConnectionString)
	assert.Equal(t, "provider-old", run.OldDataProviderString)
	assert.Equal(t, []string{"a.config", "b.config"}, run.Targets)
	assert.True(t, run.FinishedAt.Equal(base.Add(time.Second)))

	var stored string
	require.NoError(t, db.QueryRow(`SELECT old_connection_string FROM runs WHERE id = 'first'`).Scan(&stored))
	assert.NotContains(t, stored, "old.db")

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].ID)
	assert.Empty(t, runs[0].OldConnectionString)
}

func TestLastSucceededWithoutRuns(t *testing.T) {
	repo, _ := newTestRepository(t)
	_, err := repo.LastSucceeded(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestLastSucceededSkipsRunsWithoutOldValues(t *testing.T) {
	repo, _ := newTestRepository(t)
	now := time.Now()
	require.NoError(t, repo.Record(context.Background(), Run{
		ID: "fresh", StartedAt: now, FinishedAt: now, Kind: "xml", Status: "succeeded",
	}))
	_, err := repo.LastSucceeded(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestVerifySQLite(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.db")

	db, err := sql.Open("sqlite", good)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE Node (ID INTEGER PRIMARY KEY, Name TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.NoError(t, VerifySQLite(context.Background(), good))

	bad := filepath.Join(dir, "bad.db")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a database at all, not even close"), 0o644))
	assert.Error(t, VerifySQLite(context.Background(), bad))

	empty := filepath.Join(dir, "empty.db")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.Error(t, VerifySQLite(context.Background(), empty))

	assert.Error(t, VerifySQLite(context.Background(), filepath.Join(dir, "missing.db")))
}
