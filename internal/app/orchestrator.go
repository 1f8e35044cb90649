// Package app drives one provisioning or rollback run from request to
// completion.
package app

import (
	"context"
	"sync"
	"time"

	"CSU/internal/cipher"
	"CSU/internal/configurator"
	"CSU/internal/data"
	apperrors "CSU/internal/errors"
	"CSU/internal/errors/logging"
	"CSU/internal/executor"
	"CSU/internal/logger"
	"CSU/internal/metrics"
	"CSU/internal/model"
	"CSU/internal/preempt"
	"CSU/internal/status"
	"CSU/internal/system"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Phase is the orchestrator's lifecycle position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Quiescer stops the dependent application before its configuration changes.
type Quiescer interface {
	Quiesce(ctx context.Context) bool
	Restart(ctx context.Context) error
}

// Options carries the collaborators of an Orchestrator. Zero values are
// replaced with the host implementations.
type Options struct {
	Executor executor.Executor
	Quiescer Quiescer
	Registry system.Registry
	History  data.Repository
	Metrics  *metrics.Recorder
	Cipher   cipher.Cipher
	LookPath func(string) (string, error)
	Clock    func() time.Time
	NewRunID func() string
}

// runInfo is what the history record needs beyond State.
type runInfo struct {
	kind      string
	backend   string
	encrypted bool
	note      string
}

// Orchestrator accepts exactly one run.
type Orchestrator struct {
	config    *system.Config
	reporter  status.Reporter
	logger    logger.Logger
	opts      Options
	validator *EnvironmentValidator
	patcher   *configurator.Patcher

	mu        sync.Mutex
	started   bool
	phase     Phase
	state     *model.State
	info      runInfo
	startedAt time.Time
	partial   *configurator.PartialFailure
}

// New wires an Orchestrator reporting to reporter.
func New(cfg *system.Config, reporter status.Reporter, log logger.Logger, opts Options) *Orchestrator {
	if opts.Executor == nil {
		opts.Executor = executor.NewSystemExecutor()
	}
	if opts.Registry == nil {
		opts.Registry = system.NewRegistry(cfg)
	}
	if opts.Cipher.Key == "" {
		opts.Cipher = cipher.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Quiescer == nil {
		processes, services := preempt.DefaultControllers(opts.Executor)
		opts.Quiescer = preempt.New(preempt.Options{
			ManagerProcess:     cfg.Preemption.ManagerProcess,
			ManagerLabel:       cfg.Preemption.ManagerLabel,
			ServiceName:        cfg.Preemption.ServiceName,
			ApplicationProcess: cfg.Preemption.ApplicationProcess,
			ApplicationLabel:   cfg.Preemption.ApplicationLabel,
			StopTimeout:        cfg.Preemption.StopTimeout,
		}, processes, services, reporter, log)
	}

	validator := NewEnvironmentValidator(cfg, log)
	if opts.LookPath != nil {
		validator.lookPath = opts.LookPath
	}

	return &Orchestrator{
		config:    cfg,
		reporter:  reporter,
		logger:    log,
		opts:      opts,
		validator: validator,
		patcher:   configurator.NewPatcher(opts.Cipher, reporter, log),
	}
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// PartialFailure returns the failure that left some configuration files
// rewritten, if the run ended that way.
func (o *Orchestrator) PartialFailure() *configurator.PartialFailure {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.partial
}

// Run provisions the backend described by req and repoints the configuration
// files at it.
func (o *Orchestrator) Run(ctx context.Context, req *model.Request) (*model.State, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}

	state := model.NewState(o.opts.NewRunID())
	ctx = logger.ContextWithRun(ctx, logger.RunContext{RunID: state.RunID})

	if err := req.Validate(); err != nil {
		return state, o.reject(ctx, state, err)
	}
	prov, err := o.provisionerFor(req)
	if err != nil {
		return state, o.reject(ctx, state, err)
	}
	if err := o.validator.Validate(req, prov); err != nil {
		return state, o.reject(ctx, state, err)
	}

	info := runInfo{kind: req.Kind.String(), encrypted: req.Encrypt}
	if req.Kind == model.KindDatabase {
		info.backend = req.Backend.String()
	}

	var (
		update      configurator.Update
		primaryOnly bool
	)
	steps := []Step{
		{"Quiesce", "orchestrator.quiesce", apperrors.ErrCategorySystem, func(ctx context.Context) error {
			state.RestartRequired = o.opts.Quiescer.Quiesce(ctx)
			return nil
		}},
		{"Provision backend", "orchestrator.provision", apperrors.ErrCategoryProvision, func(ctx context.Context) error {
			result, err := prov.Provision(ctx, req, state)
			if result != nil && o.opts.Metrics != nil {
				for _, script := range result.Scripts {
					o.opts.Metrics.ObserveScript(script.ExitCode)
				}
			}
			if err != nil {
				return err
			}

			state.NewConnectionString = result.ConnectionString
			state.NewDataProviderString = result.DataProviderString
			update = configurator.Update{
				ConnectionString:   result.ConnectionString,
				DataProviderString: result.DataProviderString,
				Encrypt:            result.Encrypt,
			}
			primaryOnly = result.PrimaryOnly
			o.setEncrypted(result.Encrypt)
			o.logger.InfoContext(ctx, "backend provisioned", logger.String("provisioner", prov.Name()))
			return nil
		}},
		{"Update configuration files", "orchestrator.patch", apperrors.ErrCategoryConfig, func(ctx context.Context) error {
			return o.patch(ctx, update, primaryOnly, state)
		}},
	}

	return state, o.execute(ctx, state, info, steps)
}

// Rollback restores the configuration values captured by the last successful
// run recorded in history.
func (o *Orchestrator) Rollback(ctx context.Context) (*model.State, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}

	state := model.NewState(o.opts.NewRunID())
	ctx = logger.ContextWithRun(ctx, logger.RunContext{RunID: state.RunID})

	if o.opts.History == nil {
		return state, o.reject(ctx, state, apperrors.ValidationError(apperrors.CodeValidationGeneric, "run history is not available", nil).
			WithModule("orchestrator").WithOperation("orchestrator.rollback"))
	}
	if err := o.validator.runValidations([]validation{
		{"Install directory", "validator.validateInstallDir", apperrors.ErrCategoryValidation, o.validator.validateInstallDir},
	}); err != nil {
		return state, o.reject(ctx, state, err)
	}

	last, err := o.opts.History.LastSucceeded(ctx)
	if errors.Is(err, data.ErrNoRuns) {
		err = apperrors.ValidationError(apperrors.CodeValidationGeneric, "no successful run with captured values to roll back", err).
			WithModule("orchestrator").WithOperation("orchestrator.rollback")
	}
	if err != nil {
		return state, o.reject(ctx, state, err)
	}

	kind, err := model.ParseConfigurationKind(last.Kind)
	if err != nil {
		return state, o.reject(ctx, state, err)
	}

	info := runInfo{kind: last.Kind, backend: last.Backend, encrypted: last.OldEncrypted, note: "rollback of " + last.ID}
	steps := []Step{
		{"Quiesce", "orchestrator.quiesce", apperrors.ErrCategorySystem, func(ctx context.Context) error {
			state.RestartRequired = o.opts.Quiescer.Quiesce(ctx)
			return nil
		}},
		{"Restore configuration files", "orchestrator.restore", apperrors.ErrCategoryConfig, func(ctx context.Context) error {
			o.reporter.Status("Restoring configuration recorded before run %s...", last.ID)
			state.NewConnectionString = last.OldConnectionString
			state.NewDataProviderString = last.OldDataProviderString
			return o.patch(ctx, configurator.Update{
				ConnectionString:   last.OldConnectionString,
				DataProviderString: last.OldDataProviderString,
				Encrypt:            last.OldEncrypted,
			}, kind != model.KindDatabase, state)
		}},
	}

	return state, o.execute(ctx, state, info, steps)
}

// Override accepts a run that failed after some configuration files were
// already rewritten. It is the only way from Failed to Succeeded.
func (o *Orchestrator) Override(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseFailed || o.partial == nil {
		phase := o.phase
		o.mu.Unlock()
		return apperrors.ValidationError(apperrors.CodeValidationGeneric, "only a partially applied run can be overridden", nil).
			WithModule("orchestrator").
			WithOperation("orchestrator.override").
			WithField("phase", phase.String())
	}
	state := o.state
	o.mu.Unlock()

	ctx = logger.ContextWithRun(ctx, logger.RunContext{RunID: state.RunID})
	o.logger.WarnContext(ctx, "partial configuration change accepted by operator",
		logger.Int("completed_targets", len(o.partial.CompletedTargets)),
		logger.String("failed_target", o.partial.FailedTarget.Path))
	o.reporter.Status("Continuing with %d of the configuration files modified.", len(o.partial.CompletedTargets))

	o.succeed(ctx, state)
	return nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return apperrors.ValidationError(apperrors.CodeValidationGeneric, "a run has already been started", nil).
			WithModule("orchestrator").
			WithOperation("orchestrator.begin").
			WithField("phase", o.phase.String())
	}
	o.started = true
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, state *model.State, info runInfo, steps []Step) error {
	o.mu.Lock()
	o.phase = PhaseRunning
	o.state = state
	o.info = info
	o.startedAt = o.opts.Clock()
	o.mu.Unlock()

	o.reporter.Clear()
	o.logger.InfoContext(ctx, "run started", logger.String("kind", info.kind), logger.String("backend", info.backend))

	if err := NewPipeline(o.logger, steps, o.stepFailed).Execute(ctx); err != nil {
		o.fail(ctx, state, err)
		return err
	}

	o.succeed(ctx, state)
	return nil
}

func (o *Orchestrator) patch(ctx context.Context, update configurator.Update, primaryOnly bool, state *model.State) error {
	targets := configurator.Discover(ctx, o.config, o.opts.Registry, o.logger)
	if primaryOnly {
		targets = configurator.PrimaryOnly(targets)
	}
	if len(targets) == 0 {
		o.logger.WarnContext(ctx, "no configuration files found", logger.String("install_dir", o.config.InstallDir))
	}

	_, err := o.patcher.Patch(ctx, targets, update, state)
	return err
}

// stepFailed keeps structured errors intact and tags anything else with the
// step it came from.
func (o *Orchestrator) stepFailed(step Step, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.New(step.Category, errorCodeForCategory(step.Category), step.Name+" failed", err).
		WithModule("orchestrator").
		WithOperation(step.Operation)
}

// reject ends a run that never started.
func (o *Orchestrator) reject(ctx context.Context, state *model.State, err error) error {
	message := failureMessage(err)
	state.Fail(message)

	o.reporter.Status("%s", message)
	o.logError(ctx, "run rejected", err)
	o.reporter.Complete(status.Completion{Outcome: state.Outcome, CanGoBack: true, CanCancel: true})
	return err
}

func (o *Orchestrator) fail(ctx context.Context, state *model.State, err error) {
	message := failureMessage(err)
	state.Fail(message)

	o.reporter.Status("%s", message)
	o.reporter.Reset()

	var partial *configurator.PartialFailure
	o.mu.Lock()
	if errors.As(err, &partial) {
		o.partial = partial
	}
	o.phase = PhaseFailed
	o.mu.Unlock()

	o.logError(ctx, "run failed", err)
	o.finish(ctx, state)
	o.reporter.Complete(status.Completion{Outcome: state.Outcome, CanGoBack: true, CanCancel: true})
}

func (o *Orchestrator) succeed(ctx context.Context, state *model.State) {
	o.reporter.Progress(100)
	state.Succeed()

	o.mu.Lock()
	o.phase = PhaseSucceeded
	o.mu.Unlock()

	if state.RestartRequired && o.config.Preemption.ShouldRestart() {
		if err := o.opts.Quiescer.Restart(ctx); err != nil {
			o.logger.WarnContext(ctx, "service restart failed", logger.Error(err))
		}
	}

	o.logger.InfoContext(ctx, "run succeeded", logger.Int("patched_targets", len(state.PatchedTargets)))
	o.finish(ctx, state)
	o.reporter.Complete(status.Completion{Outcome: state.Outcome, CanGoForward: true})
}

// finish records the run in history and metrics. Neither is fatal.
func (o *Orchestrator) finish(ctx context.Context, state *model.State) {
	o.mu.Lock()
	info := o.info
	started := o.startedAt
	o.mu.Unlock()
	finished := o.opts.Clock()

	if o.opts.History != nil {
		message := state.Outcome.Message
		if message == "" {
			message = info.note
		}
		run := data.Run{
			ID:                    state.RunID,
			StartedAt:             started,
			FinishedAt:            finished,
			Kind:                  info.kind,
			Backend:               info.backend,
			Status:                state.Outcome.Status.String(),
			Message:               message,
			NewConnectionString:   state.NewConnectionString,
			NewDataProviderString: state.NewDataProviderString,
			NewEncrypted:          info.encrypted,
			OldConnectionString:   state.OldConnectionString,
			OldDataProviderString: state.OldDataProviderString,
			OldEncrypted:          state.OldEncrypted,
			Targets:               state.PatchedTargets,
		}
		if err := o.opts.History.Record(ctx, run); err != nil {
			o.logError(ctx, "failed to record run history", err)
		}
	}

	if o.opts.Metrics != nil {
		o.opts.Metrics.ObserveRun(info.kind, info.backend, state, finished.Sub(started), finished)
		if err := o.opts.Metrics.WriteTextfile(o.config.Metrics.Textfile); err != nil {
			o.logger.WarnContext(ctx, "failed to write metrics", logger.Error(err))
		}
	}
}

func (o *Orchestrator) setEncrypted(encrypted bool) {
	o.mu.Lock()
	o.info.encrypted = encrypted
	o.mu.Unlock()
}

func (o *Orchestrator) logError(ctx context.Context, msg string, err error) {
	logging.Error(ctx, o.logger, msg, err)
}

// failureMessage is the line appended to the status stream for err.
func failureMessage(err error) string {
	var partial *configurator.PartialFailure
	if errors.As(err, &partial) {
		return partial.Error()
	}
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Err != nil {
			return appErr.Message + ": " + appErr.Err.Error()
		}
		return appErr.Message
	}
	return err.Error()
}
