// Package data persists run history and inspects embedded database images.
package data

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNoRuns is returned when the history holds no matching run.
var ErrNoRuns = errors.New("no recorded runs")

// Run is one finished provisioning run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Kind       string
	Backend    string
	Status     string
	Message    string

	NewConnectionString   string
	NewDataProviderString string
	NewEncrypted          bool
	OldConnectionString   string
	OldDataProviderString string
	OldEncrypted          bool

	Targets []string
}

// Repository describes the persistence contract for run history.
type Repository interface {
	// Bootstrap prepares the backing store.
	Bootstrap(ctx context.Context) error
	Record(ctx context.Context, run Run) error
	// LastSucceeded returns the most recent successful run that captured old values.
	LastSucceeded(ctx context.Context) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}
