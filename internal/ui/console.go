package ui

import (
	"CSU/internal/logger"
	"CSU/internal/status"
)

// Console is the single consumer of a run's status events.
type Console struct {
	printer *Printer
	logger  logger.Logger

	lastProgress int
}

// NewConsole builds a Console writing through printer.
func NewConsole(printer *Printer, log logger.Logger) *Console {
	return &Console{
		printer:      printer,
		logger:       log,
		lastProgress: -1,
	}
}

// Drain renders events in order until the channel is closed and returns the
// last completion seen.
func (c *Console) Drain(events <-chan status.Event) (status.Completion, bool) {
	var (
		done status.Completion
		seen bool
	)

	for event := range events {
		switch event.Kind {
		case status.EventClear:
			c.printer.PrintSeparator("=", 50)
			c.lastProgress = -1
		case status.EventStatus:
			c.printer.PrintLine(event.Line)
		case status.EventProgress:
			if event.Progress == c.lastProgress {
				continue
			}
			c.lastProgress = event.Progress
			c.printer.PrintProgress(event.Progress)
		case status.EventCompletion:
			done = event.Completion
			seen = true
			c.printer.PrintOutcome(done.Outcome)
			if c.logger != nil {
				c.logger.Debug("completion: forward=%t back=%t cancel=%t",
					done.CanGoForward, done.CanGoBack, done.CanCancel)
			}
		}
	}

	return done, seen
}
