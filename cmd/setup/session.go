package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CSU/internal/app"
	"CSU/internal/cipher"
	"CSU/internal/data"
	"CSU/internal/metrics"
	"CSU/internal/model"
	"CSU/internal/status"
	"CSU/internal/system"
	"CSU/internal/ui"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// errSetupFailed ends the process with exit code 1 after the failure has
// already been shown.
var errSetupFailed = errors.New("setup failed")

// session owns everything a single orchestrated run needs.
type session struct {
	lock         *system.ProcessLock
	history      *data.SQLiteRepository
	closeHistory func() error
	printer      *ui.Printer
	console      *ui.Console
	relay        *status.Forwarder
	orchestrator *app.Orchestrator
}

func openSession(ctx context.Context) (*session, error) {
	if err := cfg.EnsureWorkDir(); err != nil {
		return nil, err
	}

	lock := system.NewProcessLock(cfg.WorkDir)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}

	db, err := data.OpenSQLite(cfg.GetHistoryPath())
	if err != nil {
		lock.Release()
		return nil, err
	}
	history := data.NewSQLiteRepository(db, cipher.Default())
	if err := history.Bootstrap(ctx); err != nil {
		db.Close()
		lock.Release()
		return nil, err
	}

	printer := ui.NewPrinter(os.Stdout)
	relay := status.NewForwarder(nil)
	s := &session{
		lock:         lock,
		history:      history,
		closeHistory: db.Close,
		printer:      printer,
		console:      ui.NewConsole(printer, log),
		relay:        relay,
	}
	s.orchestrator = app.New(cfg, relay, log, app.Options{
		History: history,
		Metrics: metrics.NewRecorder(),
	})
	return s, nil
}

func (s *session) Close() {
	if err := s.closeHistory(); err != nil {
		log.Warn("Failed to close run history: %v", err)
	}
	if err := s.lock.Release(); err != nil {
		log.Warn("Failed to release lock: %v", err)
	}
}

// phase runs fn on a worker goroutine while the console drains its events.
// The worker is detached from cancellation so a started run always reaches
// its completion event.
func (s *session) phase(ctx context.Context, fn func(ctx context.Context) error) (status.Completion, bool, error) {
	events := status.NewChannel(status.DefaultCapacity)
	s.relay.Attach(events)
	defer s.relay.Attach(nil)

	var (
		done status.Completion
		seen bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer events.Close()
		return fn(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		done, seen = s.console.Drain(events.Events())
		return nil
	})

	err := g.Wait()
	return done, seen, err
}

// finish prints the summary and maps the final phase to the exit status.
func (s *session) finish(state *model.State) error {
	s.printer.PrintSummary(state)
	if s.orchestrator.Phase() != app.PhaseSucceeded {
		return errSetupFailed
	}
	return nil
}

// signalContext cancels on SIGINT or SIGTERM. Only waiting for input is
// interrupted; a started run is not.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Info("Received exit signal, finishing the current step...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
