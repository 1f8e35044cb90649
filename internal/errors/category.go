package errors

// ErrorCategory groups related application errors for unified handling.
type ErrorCategory string

const (
	ErrCategorySystem     ErrorCategory = "SYSTEM"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryDependency ErrorCategory = "DEPENDENCY"
	ErrCategoryProvision  ErrorCategory = "PROVISION"
	ErrCategoryDatabase   ErrorCategory = "DATABASE"
)
