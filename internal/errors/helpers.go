package errors

import "time"

// New creates a generic AppError in the given category.
func New(category ErrorCategory, code, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		Category:  category,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// SystemError creates a SYSTEM category error instance.
func SystemError(code, message string, err error) *AppError {
	return New(ErrCategorySystem, code, message, err)
}

// ConfigError creates a CONFIG category error instance.
func ConfigError(code, message string, err error) *AppError {
	return New(ErrCategoryConfig, code, message, err)
}

// ValidationError creates a VALIDATION category error instance.
func ValidationError(code, message string, err error) *AppError {
	return New(ErrCategoryValidation, code, message, err)
}

// DependencyError creates a DEPENDENCY category error instance.
func DependencyError(code, message string, err error) *AppError {
	return New(ErrCategoryDependency, code, message, err)
}

// ProvisionError creates a PROVISION category error instance.
func ProvisionError(code, message string, err error) *AppError {
	return New(ErrCategoryProvision, code, message, err)
}

// DatabaseError creates a DATABASE category error instance.
func DatabaseError(code, message string, err error) *AppError {
	return New(ErrCategoryDatabase, code, message, err)
}

// PreemptionError creates the non-fatal error reported when quiescing fails.
func PreemptionError(message string, err error) *AppError {
	return New(ErrCategorySystem, CodePreemptionFailure, message, err).WithRecoverable(true)
}
