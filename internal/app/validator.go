package app

import (
	"os"
	"os/exec"

	apperrors "CSU/internal/errors"
	"CSU/internal/logger"
	"CSU/internal/model"
	"CSU/internal/provisioner"
	"CSU/internal/system"
)

type validation struct {
	name      string
	operation string
	category  apperrors.ErrorCategory
	fn        func() error
}

type sourceProvider interface {
	SourceDir() string
}

type clientProvider interface {
	Client() string
}

// EnvironmentValidator checks that a request can run on this host.
type EnvironmentValidator struct {
	config   *system.Config
	logger   logger.Logger
	lookPath func(string) (string, error)
}

// NewEnvironmentValidator constructs a validator instance.
func NewEnvironmentValidator(cfg *system.Config, log logger.Logger) *EnvironmentValidator {
	return &EnvironmentValidator{
		config:   cfg,
		logger:   log,
		lookPath: exec.LookPath,
	}
}

// Validate checks the install directory and, for runs that provision a
// database, the script source and the SQL client.
func (v *EnvironmentValidator) Validate(req *model.Request, prov provisioner.Provisioner) error {
	checks := []validation{
		{"Install directory", "validator.validateInstallDir", apperrors.ErrCategoryValidation, v.validateInstallDir},
	}

	if req.Kind == model.KindDatabase && req.ShouldProvision() {
		if src, ok := prov.(sourceProvider); ok {
			checks = append(checks, validation{"Script directory", "validator.validateSourceDir", apperrors.ErrCategoryValidation,
				func() error { return v.validateSourceDir(src.SourceDir()) }})
		}
		if c, ok := prov.(clientProvider); ok {
			checks = append(checks, validation{"SQL client", "validator.validateClient", apperrors.ErrCategoryDependency,
				func() error { return v.validateClient(c.Client()) }})
		}
	}

	return v.runValidations(checks)
}

func (v *EnvironmentValidator) runValidations(checks []validation) error {
	for _, check := range checks {
		if err := check.fn(); err != nil {
			if appErr, ok := apperrors.As(err); ok {
				return appErr
			}
			return v.wrapError(check.category, check.operation, check.name+" validation failed", err, nil)
		}
	}
	return nil
}

func (v *EnvironmentValidator) validateInstallDir() error {
	return v.requireDir(v.config.InstallDir, "validator.validateInstallDir", "install directory not found")
}

func (v *EnvironmentValidator) validateSourceDir(dir string) error {
	return v.requireDir(dir, "validator.validateSourceDir", "database scripts directory not found")
}

func (v *EnvironmentValidator) requireDir(dir, operation, message string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return v.wrapError(apperrors.ErrCategoryValidation, operation, message, err, apperrors.Metadata{"path": dir})
	}
	if !info.IsDir() {
		return v.wrapError(apperrors.ErrCategoryValidation, operation, message, nil, apperrors.Metadata{"path": dir})
	}
	v.logger.Debug("Found directory: %s", dir)
	return nil
}

func (v *EnvironmentValidator) validateClient(name string) error {
	path, err := v.lookPath(name)
	if err != nil {
		return v.wrapError(
			apperrors.ErrCategoryDependency,
			"validator.validateClient",
			"SQL client "+name+" not found on PATH",
			err,
			apperrors.Metadata{"client": name},
		)
	}
	v.logger.Debug("Using SQL client: %s", path)
	return nil
}

func (v *EnvironmentValidator) wrapError(category apperrors.ErrorCategory, operation, message string, err error, metadata apperrors.Metadata) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Module == "" {
			appErr.WithModule("environment-validator")
		}
		if operation != "" && appErr.Operation == "" {
			appErr.WithOperation(operation)
		}
		if metadata != nil {
			appErr.WithFields(metadata)
		}
		return appErr
	}

	return apperrors.New(category, errorCodeForCategory(category), message, err).
		WithModule("environment-validator").
		WithOperation(operation).
		WithFields(metadata)
}

func errorCodeForCategory(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.ErrCategoryConfig:
		return apperrors.CodeConfigGeneric
	case apperrors.ErrCategoryValidation:
		return apperrors.CodeValidationGeneric
	case apperrors.ErrCategoryDependency:
		return apperrors.CodeDependencyGeneric
	case apperrors.ErrCategoryProvision:
		return apperrors.CodeProvisionGeneric
	case apperrors.ErrCategoryDatabase:
		return apperrors.CodeDatabaseGeneric
	default:
		return apperrors.CodeSystemGeneric
	}
}
