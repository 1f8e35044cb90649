package app

import (
	apperrors "CSU/internal/errors"
	"CSU/internal/model"
	"CSU/internal/provisioner"
)

// provisionerFor selects the provisioner for req. Every kind and backend is
// matched explicitly; there is no fallback backend.
func (o *Orchestrator) provisionerFor(req *model.Request) (provisioner.Provisioner, error) {
	switch req.Kind {
	case model.KindDatabase:
		return o.databaseProvisioner(req.Backend)
	case model.KindXML, model.KindWebService:
		return provisioner.NewReference(req.Kind, o.logger), nil
	default:
		return nil, dispatchError("unsupported configuration kind", "kind", req.Kind.String())
	}
}

func (o *Orchestrator) databaseProvisioner(backend model.BackendKind) (provisioner.Provisioner, error) {
	scripts := o.config.GetScriptsDir()

	var dialect provisioner.Dialect
	switch backend {
	case model.BackendSQLite:
		return provisioner.NewFileCopy(scripts, o.reporter, o.logger), nil
	case model.BackendMySQL:
		dialect = provisioner.NewMySQL(o.config.Clients.MySQL)
	case model.BackendSQLServer:
		dialect = provisioner.NewSQLServer(o.config.Clients.SQLServer)
	case model.BackendPostgreSQL:
		dialect = provisioner.NewPostgreSQL(o.config.Clients.PostgreSQL)
	default:
		return nil, dispatchError("unsupported database backend", "backend", backend.String())
	}

	return provisioner.NewScriptRunner(dialect, o.opts.Executor, scripts, o.config.ScriptTimeout, o.reporter, o.logger), nil
}

func dispatchError(message, key, value string) *apperrors.AppError {
	return apperrors.ValidationError(apperrors.CodeValidationGeneric, message, nil).
		WithModule("orchestrator").
		WithOperation("orchestrator.dispatch").
		WithField(key, value)
}
