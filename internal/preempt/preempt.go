// Package preempt stops running instances of the dependent application before
// its configuration is rewritten.
package preempt

import (
	"context"
	"fmt"
	"time"

	apperrors "CSU/internal/errors"
	"CSU/internal/errors/logging"
	"CSU/internal/logger"
	"CSU/internal/status"

	"github.com/pkg/errors"
)

const continuing = "Modifications continuing anyway..."

// Options names the processes and service to quiesce.
type Options struct {
	ManagerProcess     string
	ManagerLabel       string
	ServiceName        string
	ApplicationProcess string
	ApplicationLabel   string
	StopTimeout        time.Duration
	PollInterval       time.Duration
}

// Preemptor quiesces the dependent application. Every step is best effort.
type Preemptor struct {
	opts      Options
	processes ProcessController
	services  ServiceController
	reporter  status.Reporter
	logger    logger.Logger

	restartRequired bool
}

// New builds a Preemptor.
func New(opts Options, processes ProcessController, services ServiceController, reporter status.Reporter, log logger.Logger) *Preemptor {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.ManagerLabel == "" {
		opts.ManagerLabel = opts.ManagerProcess
	}
	if opts.ApplicationLabel == "" {
		opts.ApplicationLabel = opts.ApplicationProcess
	}
	return &Preemptor{
		opts:      opts,
		processes: processes,
		services:  services,
		reporter:  reporter,
		logger:    log,
	}
}

// Quiesce kills management consoles, stops the service, then kills remaining
// application processes. It reports whether the service must be restarted later.
func (p *Preemptor) Quiesce(ctx context.Context) bool {
	p.restartRequired = false

	p.killAll(ctx, p.opts.ManagerProcess, p.opts.ManagerLabel)
	p.stopService(ctx)
	p.killAll(ctx, p.opts.ApplicationProcess, p.opts.ApplicationLabel)

	return p.restartRequired
}

// RestartRequired reports the result of the last Quiesce.
func (p *Preemptor) RestartRequired() bool {
	return p.restartRequired
}

// Restart starts the service again if the last Quiesce stopped it.
func (p *Preemptor) Restart(ctx context.Context) error {
	if !p.restartRequired || p.opts.ServiceName == "" {
		return nil
	}

	p.reporter.Status("Attempting to restart the %s service...", p.opts.ServiceName)
	if err := p.services.Start(ctx, p.opts.ServiceName); err != nil {
		p.reporter.Status("Failed to restart the %s service: %v", p.opts.ServiceName, err)
		return errors.Wrapf(err, "start service %s", p.opts.ServiceName)
	}
	p.restartRequired = false
	p.reporter.Status("Successfully restarted the %s service.", p.opts.ServiceName)
	return nil
}

func (p *Preemptor) killAll(ctx context.Context, name, label string) {
	if name == "" {
		return
	}

	pids, err := p.processes.Find(ctx, name)
	if err != nil {
		p.fail(ctx, fmt.Sprintf("Failed to terminate running instances of the %s", label), err, "process", name)
		return
	}
	if len(pids) == 0 {
		return
	}

	p.reporter.Status("Attempting to stop running instances of the %s...", label)
	total := 0
	for _, pid := range pids {
		if err := p.processes.Kill(ctx, pid); err != nil {
			if total > 0 {
				p.reporter.Status("Stopped %d %s instance%s.", total, label, plural(total))
			}
			p.fail(ctx, fmt.Sprintf("Failed to terminate running instances of the %s", label), err, "process", name)
			return
		}
		total++
	}

	p.reporter.Status("Stopped %d %s instance%s.", total, label, plural(total))
	p.reporter.Status("")
	p.logger.InfoContext(ctx, "terminated processes", logger.String("process", name), logger.Int("count", total))
}

func (p *Preemptor) stopService(ctx context.Context) {
	name := p.opts.ServiceName
	if name == "" {
		return
	}

	state, err := p.services.Query(ctx, name)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			p.logger.DebugContext(ctx, "service not installed", logger.String("service", name))
			return
		}
		p.fail(ctx, fmt.Sprintf("Failed to stop the %s service", name), err, "service", name)
		return
	}
	if state != ServiceRunning {
		return
	}

	p.reporter.Status("Attempting to stop the %s service...", name)
	if err := p.services.Stop(ctx, name); err != nil {
		p.fail(ctx, fmt.Sprintf("Failed to stop the %s service", name), err, "service", name)
		return
	}

	stopped, err := p.waitStopped(ctx, name)
	switch {
	case err != nil:
		p.fail(ctx, fmt.Sprintf("Failed to stop the %s service", name), err, "service", name)
		return
	case stopped:
		p.restartRequired = true
		p.reporter.Status("Successfully stopped the %s service.", name)
	default:
		p.reporter.Status("Failed to stop the %s service after trying for %s.\n%s", name, p.opts.StopTimeout, continuing)
		p.logger.WarnContext(ctx, "service stop timed out",
			logger.String("service", name),
			logger.Duration("timeout", p.opts.StopTimeout))
	}
	p.reporter.Status("")
}

// waitStopped polls until the service reports stopped or StopTimeout elapses.
func (p *Preemptor) waitStopped(ctx context.Context, name string) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.opts.StopTimeout)
	defer cancel()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		state, err := p.services.Query(waitCtx, name)
		if err != nil && waitCtx.Err() == nil {
			return false, err
		}
		if err == nil && state == ServiceStopped {
			return true, nil
		}

		select {
		case <-waitCtx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

func (p *Preemptor) fail(ctx context.Context, message string, err error, key, value string) {
	p.reporter.Status("%s: %v\n%s\n", message, err, continuing)
	appErr := apperrors.PreemptionError(message, err).
		WithModule("preempt").
		WithField(key, value)
	logging.Error(ctx, p.logger, "preemption step failed", appErr)
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
