package data

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CSU/internal/cipher"
	apperrors "CSU/internal/errors"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                       TEXT PRIMARY KEY,
	started_at               INTEGER NOT NULL,
	finished_at              INTEGER NOT NULL,
	kind                     TEXT NOT NULL,
	backend                  TEXT NOT NULL DEFAULT '',
	status                   TEXT NOT NULL,
	message                  TEXT NOT NULL DEFAULT '',
	new_connection_string    TEXT NOT NULL DEFAULT '',
	new_data_provider_string TEXT NOT NULL DEFAULT '',
	new_encrypted            INTEGER NOT NULL DEFAULT 0,
	old_connection_string    TEXT NOT NULL DEFAULT '',
	old_data_provider_string TEXT NOT NULL DEFAULT '',
	old_encrypted            INTEGER NOT NULL DEFAULT 0,
	targets                  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_finished_at ON runs (finished_at);
`

const runColumns = `id, started_at, finished_at, kind, backend, status, message,
	new_connection_string, new_data_provider_string, new_encrypted,
	old_connection_string, old_data_provider_string, old_encrypted, targets`

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s", path)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteRepository persists run history in a SQLite database file.
// Connection strings are stored encrypted.
type SQLiteRepository struct {
	db     *sql.DB
	cipher cipher.Cipher
}

// NewSQLiteRepository wires a SQLite-backed implementation of Repository.
func NewSQLiteRepository(db *sql.DB, c cipher.Cipher) *SQLiteRepository {
	return &SQLiteRepository{
		db:     db,
		cipher: c,
	}
}

// Bootstrap creates the schema.
func (r *SQLiteRepository) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return newDataError("data.Bootstrap", "failed to create history schema", err)
	}
	return nil
}

// Record stores run, replacing an earlier record with the same id.
func (r *SQLiteRepository) Record(ctx context.Context, run Run) error {
	newConn, err := r.seal(run.NewConnectionString)
	if err != nil {
		return newDataError("data.Record", "failed to seal connection string", err)
	}
	oldConn, err := r.seal(run.OldConnectionString)
	if err != nil {
		return newDataError("data.Record", "failed to seal connection string", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(),
		run.Kind,
		run.Backend,
		run.Status,
		run.Message,
		newConn,
		run.NewDataProviderString,
		run.NewEncrypted,
		oldConn,
		run.OldDataProviderString,
		run.OldEncrypted,
		strings.Join(run.Targets, "\n"),
	)
	if err != nil {
		return newDataError("data.Record", "failed to record run", err).WithField("run_id", run.ID)
	}
	return nil
}

func (r *SQLiteRepository) LastSucceeded(ctx context.Context) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs
		WHERE status = 'succeeded' AND (old_connection_string <> '' OR old_data_provider_string <> '')
		ORDER BY finished_at DESC LIMIT 1`)

	run, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, newDataError("data.LastSucceeded", "failed to read run history", err)
	}
	return run, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, newDataError("data.List", "failed to query run history", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, newDataError("data.List", "failed to read run history", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, newDataError("data.List", "failed to read run history", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *SQLiteRepository) scan(s scanner) (*Run, error) {
	var (
		run               Run
		started, finished int64
		targets           string
	)
	err := s.Scan(
		&run.ID,
		&started,
		&finished,
		&run.Kind,
		&run.Backend,
		&run.Status,
		&run.Message,
		&run.NewConnectionString,
		&run.NewDataProviderString,
		&run.NewEncrypted,
		&run.OldConnectionString,
		&run.OldDataProviderString,
		&run.OldEncrypted,
		&targets,
	)
	if err != nil {
		return nil, err
	}

	if run.NewConnectionString, err = r.unseal(run.NewConnectionString); err != nil {
		return nil, errors.Wrap(err, "unseal connection string")
	}
	if run.OldConnectionString, err = r.unseal(run.OldConnectionString); err != nil {
		return nil, errors.Wrap(err, "unseal connection string")
	}

	run.StartedAt = time.Unix(0, started)
	run.FinishedAt = time.Unix(0, finished)
	if targets != "" {
		run.Targets = strings.Split(targets, "\n")
	}
	return &run, nil
}

// seal leaves empty values empty so they stay queryable.
func (r *SQLiteRepository) seal(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return r.cipher.Encrypt(value)
}

func (r *SQLiteRepository) unseal(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return r.cipher.Decrypt(value)
}

func newDataError(operation, message string, err error) *apperrors.AppError {
	return apperrors.DatabaseError(apperrors.CodeDatabaseGeneric, message, err).
		WithModule("data").
		WithOperation(operation)
}

var _ Repository = (*SQLiteRepository)(nil)
