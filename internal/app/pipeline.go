package app

import (
	"context"

	apperrors "CSU/internal/errors"
	"CSU/internal/logger"
)

// Step describes a single orchestration phase.
type Step struct {
	Name      string
	Operation string
	Category  apperrors.ErrorCategory
	Fn        func(ctx context.Context) error
}

// StepErrorHandler handles step failures.
type StepErrorHandler func(step Step, err error) error

// Pipeline executes steps sequentially and stops at the first failure.
type Pipeline struct {
	steps   []Step
	logger  logger.Logger
	onError StepErrorHandler
}

// NewPipeline constructs a new pipeline.
func NewPipeline(log logger.Logger, steps []Step, handler StepErrorHandler) *Pipeline {
	return &Pipeline{
		steps:   steps,
		logger:  log,
		onError: handler,
	}
}

// Execute runs through all configured steps. Each step sees the run context
// annotated with its own name.
func (p *Pipeline) Execute(ctx context.Context) error {
	run := logger.RunFromContext(ctx)
	for _, step := range p.steps {
		run.Step = step.Name
		stepCtx := logger.ContextWithRun(ctx, run)

		if p.logger != nil {
			p.logger.DebugContext(stepCtx, "executing step")
		}
		if err := step.Fn(stepCtx); err != nil {
			if p.onError != nil {
				return p.onError(step, err)
			}
			return err
		}
	}
	return nil
}
