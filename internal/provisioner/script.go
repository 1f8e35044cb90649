package provisioner

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	apperrors "CSU/internal/errors"
	"CSU/internal/executor"
	"CSU/internal/logger"
	"CSU/internal/model"
	"CSU/internal/status"

	"github.com/pkg/errors"
)

// ScriptRunner provisions a database server by running SQL scripts through its
// command-line client.
type ScriptRunner struct {
	dialect    Dialect
	exec       executor.Executor
	scriptsDir string
	timeout    time.Duration
	reporter   status.Reporter
	logger     logger.Logger
}

// NewScriptRunner wires a ScriptRunner for dialect.
func NewScriptRunner(dialect Dialect, exec executor.Executor, scriptsDir string, timeout time.Duration, reporter status.Reporter, log logger.Logger) *ScriptRunner {
	return &ScriptRunner{
		dialect:    dialect,
		exec:       exec,
		scriptsDir: scriptsDir,
		timeout:    timeout,
		reporter:   reporter,
		logger:     log,
	}
}

func (p *ScriptRunner) Name() string { return p.dialect.Backend().String() }

// SourceDir is where the runner reads its scripts.
func (p *ScriptRunner) SourceDir() string {
	return filepath.Join(p.scriptsDir, p.dialect.ScriptDir())
}

// Client is the command-line client the runner invokes.
func (p *ScriptRunner) Client() string { return p.dialect.Client() }

func (p *ScriptRunner) Provision(ctx context.Context, req *model.Request, state *model.State) (*Result, error) {
	server := req.Server
	login := Login{
		User:       server.AdminUser,
		Password:   server.AdminPassword,
		Integrated: server.IntegratedSecurity,
	}
	state.ActiveUser = login.User

	result := &Result{Encrypt: req.Encrypt}

	if req.ShouldProvision() {
		if !req.Existing {
			if err := p.createDatabase(ctx, server, login, result); err != nil {
				return result, err
			}
		}
		if err := p.runScripts(ctx, req, server, login, result); err != nil {
			return result, err
		}
		if req.CreateUser {
			if err := p.createUser(ctx, req, server, login, result); err != nil {
				return result, err
			}
			login = Login{User: req.NewUser.Name, Password: req.NewUser.Password}
			state.ActiveUser = login.User
			p.reporter.Progress(95)
		}
	}

	result.ConnectionString = p.dialect.ConnectionString(server, login)
	result.DataProviderString = strings.TrimSpace(server.DataProviderString)
	if result.DataProviderString == "" {
		result.DataProviderString = p.dialect.DefaultDataProvider()
	}
	return result, nil
}

func (p *ScriptRunner) createDatabase(ctx context.Context, server model.ServerOptions, login Login, result *Result) error {
	p.reporter.Status("Attempting to create %s database %s...", p.dialect.Label(), server.Database)

	stmt := p.dialect.CreateDatabase(server.Database)
	run, err := p.runStatement(ctx, server, login, stmt)
	result.Scripts = append(result.Scripts, scriptResult("CREATE DATABASE", run))
	if err != nil {
		return newProvisionError(apperrors.CodeScriptFailure, "provisioner.createDatabase", "failed to create database", err,
			apperrors.Metadata{"database": server.Database, "stderr": run.StderrText()})
	}

	p.reporter.Status("Created database %s.", server.Database)
	p.reporter.Status("")
	return nil
}

func (p *ScriptRunner) runScripts(ctx context.Context, req *model.Request, server model.ServerOptions, login Login, result *Result) error {
	job := model.BuildScriptJob(req)
	total := len(job)

	for k, name := range job {
		file := name + ".sql"
		path := filepath.Join(p.SourceDir(), file)
		p.reporter.Status("Attempting to run %s script...", file)

		run, err := p.runFile(ctx, server, login, server.Database, path)
		result.Scripts = append(result.Scripts, scriptResult(file, run))
		if err != nil {
			return newProvisionError(apperrors.CodeScriptFailure, "provisioner.runScripts", "script "+file+" failed", err,
				apperrors.Metadata{"script": file, "stderr": run.StderrText()})
		}

		p.reporter.Progress(90 * (k + 1) / total)
		p.reporter.Status("%s ran successfully.", file)
		p.reporter.Status("")
	}
	return nil
}

// createUser issues the create-user statements, then the grant. The caller
// switches credentials only when both succeed. Failures are reported through
// the returned error alone.
func (p *ScriptRunner) createUser(ctx context.Context, req *model.Request, server model.ServerOptions, login Login, result *Result) error {
	user := req.NewUser
	p.reporter.Status("Attempting to create new user %s...", user.Name)

	for _, stmt := range p.dialect.CreateUser(server.Database, user) {
		run, err := p.runStatement(ctx, server, login, stmt)
		result.Scripts = append(result.Scripts, scriptResult("CREATE USER", run))
		if err != nil {
			return newProvisionError(apperrors.CodeUserCreationFailure, "provisioner.createUser", "failed to create new user "+user.Name, err,
				apperrors.Metadata{"user": user.Name, "stderr": run.StderrText()})
		}
	}
	p.reporter.Status("Created new user %s.", user.Name)

	run, err := p.runStatement(ctx, server, login, p.dialect.Grant(server.Database, user.Name))
	result.Scripts = append(result.Scripts, scriptResult("GRANT", run))
	if err != nil {
		return newProvisionError(apperrors.CodeUserCreationFailure, "provisioner.createUser",
			"failed to grant access on "+server.Database+" to "+user.Name, err,
			apperrors.Metadata{"user": user.Name, "stderr": run.StderrText()})
	}

	p.reporter.Status("Granted SELECT, UPDATE, INSERT on %s to %s.", server.Database, user.Name)
	p.reporter.Status("")
	return nil
}

func (p *ScriptRunner) runStatement(ctx context.Context, server model.ServerOptions, login Login, stmt Statement) (*executor.Result, error) {
	path, cleanup, err := writeTemp("csu-statement-*.sql", []byte(stmt.SQL+"\n"))
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return p.runFile(ctx, server, login, stmt.Database, path)
}

func (p *ScriptRunner) runFile(ctx context.Context, server model.ServerOptions, login Login, database, path string) (*executor.Result, error) {
	cmd, cleanup, err := p.dialect.Command(server, login, database, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.logger.DebugContext(ctx, "running sql client", logger.String("command", cmd.String()), logger.String("input", filepath.Base(path)))

	run, err := p.exec.Run(ctx, cmd, func(stream executor.Stream, line string) {
		p.reporter.Status("%s", line)
	})
	if err != nil {
		return run, errors.Wrapf(err, "%s client", p.dialect.Label())
	}
	return run, nil
}

func scriptResult(name string, run *executor.Result) ScriptResult {
	res := ScriptResult{Name: name}
	if run != nil {
		res.ExitCode = run.ExitCode
		res.Stderr = run.StderrText()
	}
	return res
}

var _ Provisioner = (*ScriptRunner)(nil)
