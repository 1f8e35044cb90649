package logger

import (
	"os"
	"time"

	"github.com/fatih/color"
)

// ColoredLogger renders log messages using colours when supported by the output writer.
type ColoredLogger struct {
	*StandardLogger
	colors map[Level]*color.Color
}

// NewColoredLogger returns a logger configured for colourful terminal output when possible.
func NewColoredLogger(options ...Option) *ColoredLogger {
	std := NewStandardLogger(options...)

	useColor := isTerminal(std.output) && os.Getenv("NO_COLOR") == ""

	colors := map[Level]*color.Color{
		LevelDebug: color.New(color.FgCyan),
		LevelInfo:  color.New(color.FgBlue),
		LevelWarn:  color.New(color.FgYellow),
		LevelError: color.New(color.FgRed),
	}

	if _, isJSON := std.formatter.(*JSONFormatter); !isJSON {
		std.formatter = &ColoredFormatter{
			timestampFormat: "15:04:05",
			colors:          colors,
			enableColors:    useColor,
		}
	}

	return &ColoredLogger{
		StandardLogger: std,
		colors:         colors,
	}
}

// Success logs an info entry prefixed with a check mark.
func (l *ColoredLogger) Success(format string, args ...interface{}) {
	l.Info("✓ "+format, args...)
}

// ColoredFormatter renders log entries with coloured levels when enabled.
type ColoredFormatter struct {
	timestampFormat string
	colors          map[Level]*color.Color
	enableColors    bool
}

// Format converts the Entry into a coloured textual representation.
func (f *ColoredFormatter) Format(entry *Entry) ([]byte, error) {
	timestampFormat := f.timestampFormat
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}

	level := entry.Level.String()
	if f.enableColors {
		if c := f.colors[entry.Level]; c != nil {
			level = c.Sprint(level)
		}
	}

	faint := color.New(color.Faint)
	fieldFormatter := func(field Field) string {
		text := defaultFieldFormatter(field)
		if f.enableColors {
			return faint.Sprint(text)
		}
		return text
	}

	return formatEntry(entry, entry.Time.Format(timestampFormat), level, fieldFormatter), nil
}
