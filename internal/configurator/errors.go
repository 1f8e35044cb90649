package configurator

import (
	"fmt"

	apperrors "CSU/internal/errors"
)

// PartialFailure reports a patch that failed after earlier targets were
// already saved. Those writes are not undone.
type PartialFailure struct {
	CompletedTargets []Target
	FailedTarget     Target
	Err              error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s could not be modified after %d configuration file(s) were updated: %v",
		e.FailedTarget.Name, len(e.CompletedTargets), e.Err)
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}

func newConfiguratorError(code, operation, message string, err error, metadata apperrors.Metadata) *apperrors.AppError {
	appErr := apperrors.ConfigError(code, message, err).
		WithModule("configurator").
		WithOperation(operation)
	if metadata != nil {
		appErr.WithFields(metadata)
	}
	return appErr
}
