// Package ui renders the status stream and run summaries on the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"CSU/internal/data"
	"CSU/internal/model"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const progressWidth = 40

// Printer renders rich terminal UI fragments used by the CLI.
type Printer struct {
	out          io.Writer
	colorEnabled bool
	success      *color.Color
	info         *color.Color
	warn         *color.Color
	error        *color.Color
	plain        *color.Color
}

// NewPrinter constructs a Printer with colour automatically enabled for TTY outputs.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	enabled := supportsColor(out) && os.Getenv("NO_COLOR") == ""

	p := &Printer{
		out:          out,
		colorEnabled: enabled,
		success:      color.New(color.FgGreen, color.Bold),
		info:         color.New(color.FgBlue, color.Bold),
		warn:         color.New(color.FgYellow, color.Bold),
		error:        color.New(color.FgRed, color.Bold),
		plain:        color.New(color.Reset),
	}

	if !enabled {
		p.success.DisableColor()
		p.info.DisableColor()
		p.warn.DisableColor()
		p.error.DisableColor()
		p.plain.DisableColor()
	}

	return p
}

// PrintBanner renders the application banner.
func (p *Printer) PrintBanner() {
	lines := []string{
		"=========================================================",
		"   openPDC Configuration Setup",
		"",
		"   Provisions the configuration database and points the",
		"   openPDC applications at it.",
		"=========================================================",
	}

	for _, line := range lines {
		p.success.Fprintln(p.out, line)
	}
}

// PrintSeparator prints a repeated character separator.
func (p *Printer) PrintSeparator(char string, length int) {
	if length <= 0 {
		return
	}
	fmt.Fprintln(p.out, strings.Repeat(char, length))
}

// PrintLine writes one status line.
func (p *Printer) PrintLine(line string) {
	fmt.Fprintln(p.out, line)
}

// PrintProgress renders a progress bar for value in [0, 100].
func (p *Printer) PrintProgress(value int) {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	filled := value * progressWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressWidth-filled)
	fmt.Fprintf(p.out, "%s %s\n", p.info.Sprintf("[%s]", bar), p.plain.Sprintf("%3d%%", value))
}

// PrintOutcome renders the final result of a run.
func (p *Printer) PrintOutcome(outcome model.Outcome) {
	p.PrintSeparator("-", 50)
	switch outcome.Status {
	case model.StatusSucceeded:
		p.success.Fprintln(p.out, "✓ Setup completed successfully.")
	case model.StatusFailed:
		p.error.Fprintln(p.out, "✕ Setup failed.")
		if outcome.Message != "" {
			fmt.Fprintln(p.out, outcome.Message)
		}
	default:
		p.warn.Fprintln(p.out, "! Setup did not finish.")
	}
}

// PrintSummary renders the values the run leaves behind.
func (p *Printer) PrintSummary(state *model.State) {
	if state == nil {
		return
	}
	p.PrintSeparator("-", 50)
	p.success.Fprintln(p.out, "Run Summary")
	fmt.Fprintln(p.out)

	rows := [][2]string{
		{"Run:", state.RunID},
		{"Status:", state.Outcome.Status.String()},
		{"Active user:", state.ActiveUser},
		{"Data provider:", state.NewDataProviderString},
		{"Previous provider:", state.OldDataProviderString},
		{"Restart required:", fmt.Sprintf("%t", state.RestartRequired)},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(p.out, "%s %s\n", p.info.Sprint(runewidth.FillRight(row[0], 20)), p.warn.Sprint(row[1]))
	}
	for _, target := range state.PatchedTargets {
		fmt.Fprintf(p.out, "%s %s\n", p.info.Sprint(runewidth.FillRight("Modified:", 20)), target)
	}
	p.PrintSeparator("-", 50)
}

// PrintHistory renders recorded runs as an aligned table.
func (p *Printer) PrintHistory(runs []data.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No runs recorded.")
		return
	}

	headers := []string{"RUN", "FINISHED", "KIND", "BACKEND", "STATUS", "FILES"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		backend := run.Backend
		if backend == "" {
			backend = "-"
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.FinishedAt.Local().Format(time.DateTime),
			run.Kind,
			backend,
			run.Status,
			fmt.Sprintf("%d", len(run.Targets)),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	p.info.Fprintln(p.out, formatRow(headers, widths))
	for _, row := range rows {
		line := formatRow(row, widths)
		if row[4] == model.StatusFailed.String() {
			p.error.Fprintln(p.out, line)
			continue
		}
		fmt.Fprintln(p.out, line)
	}
}

func formatRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = runewidth.FillRight(cell, widths[i])
	}
	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func supportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
