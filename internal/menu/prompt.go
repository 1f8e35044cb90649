package menu

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/manifoldco/promptui"
	runewidth "github.com/mattn/go-runewidth"
)

// Prompter asks the operator one question at a time.
type Prompter interface {
	Select(label string, items []string) (int, error)
	Input(label, defaultValue string, validate func(string) error) (string, error)
	Secret(label string, validate func(string) error) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}

// PromptUI is the terminal Prompter.
type PromptUI struct{}

func (PromptUI) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}:",
			Active:   "▶ {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "✅ {{ . | green }}",
			Help:     "{{ \"Navigate:\" | faint }} {{ .NextKey }} {{ .PrevKey }} {{ \"|\" | faint }} {{ \"Exit:\" | faint }} Ctrl + C",
		},
	}

	index, _, err := prompt.Run()
	return index, translate(err)
}

func (PromptUI) Input(label, defaultValue string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
		Validate:  validate,
	}
	value, err := prompt.Run()
	return strings.TrimSpace(value), translate(err)
}

func (PromptUI) Secret(label string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: validate,
	}
	value, err := prompt.Run()
	return value, translate(err)
}

func (PromptUI) Confirm(label string, defaultYes bool) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if defaultYes {
		prompt.Default = "y"
	}

	value, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, translate(err)
	}
	if value == "" {
		return defaultYes, nil
	}
	return strings.EqualFold(value, "y") || strings.EqualFold(value, "yes"), nil
}

func translate(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrCancelled
	}
	return err
}

// Option is one entry of a selection list.
type Option struct {
	Label string
	Color string
}

// formatOptions aligns numbered labels behind a colour marker.
func formatOptions(options []Option) []string {
	numberPattern := regexp.MustCompile(`^(\d+)\.\s*(.*)$`)

	type entry struct {
		prefix, number, text string
	}
	entries := make([]entry, 0, len(options))
	maxPrefix, maxNumber := 0, 0
	for _, option := range options {
		e := entry{prefix: statusPrefix(option.Color), text: option.Label}
		if m := numberPattern.FindStringSubmatch(option.Label); len(m) == 3 {
			e.number, e.text = m[1], m[2]
		}
		if w := runewidth.StringWidth(e.prefix); w > maxPrefix {
			maxPrefix = w
		}
		if len(e.number) > maxNumber {
			maxNumber = len(e.number)
		}
		entries = append(entries, e)
	}

	items := make([]string, 0, len(entries))
	for _, e := range entries {
		prefix := e.prefix + strings.Repeat(" ", maxPrefix-runewidth.StringWidth(e.prefix))
		number := ""
		if e.number != "" {
			number = fmt.Sprintf("%*s. ", maxNumber, e.number)
		} else if maxNumber > 0 {
			number = strings.Repeat(" ", maxNumber+2)
		}
		items = append(items, fmt.Sprintf("%s %s%s", prefix, number, e.text))
	}
	return items
}

func statusPrefix(color string) string {
	switch color {
	case "red":
		return "🔴"
	case "green":
		return "🟢"
	case "yellow":
		return "🟡"
	case "cyan":
		return "🔵"
	default:
		return "⚪"
	}
}
