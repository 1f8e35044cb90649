// Package provisioner prepares the selected backend and derives the connection
// settings the dependent applications are pointed at.
package provisioner

import (
	"context"

	apperrors "CSU/internal/errors"
	"CSU/internal/model"
)

// ScriptResult records one executed script or statement batch.
type ScriptResult struct {
	Name     string
	ExitCode int
	Stderr   string
}

// Result is what a successful Provision hands to the configuration patcher.
type Result struct {
	Scripts            []ScriptResult
	ConnectionString   string
	DataProviderString string
	// PrimaryOnly restricts patching to the main application configuration.
	PrimaryOnly bool
	Encrypt     bool
}

// Provisioner prepares one kind of backend.
type Provisioner interface {
	Name() string
	Provision(ctx context.Context, req *model.Request, state *model.State) (*Result, error)
}

func newProvisionError(code, operation, message string, err error, metadata apperrors.Metadata) *apperrors.AppError {
	return apperrors.ProvisionError(code, message, err).
		WithModule("provisioner").
		WithOperation(operation).
		WithFields(metadata)
}
