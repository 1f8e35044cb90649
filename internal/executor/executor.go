// Package executor runs external command-line tools with line-streamed output.
package executor

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Stream identifies which output stream a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// LineHandler receives output lines as they arrive. Calls are serialised.
type LineHandler func(stream Stream, line string)

// Command describes one invocation of an external tool.
type Command struct {
	Name string
	Args []string
	// Env entries are appended to the current process environment.
	Env []string
	Dir string
	// StdinFile, when set, is opened and fed to the process on stdin.
	StdinFile string
}

// String renders the command line without its environment.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds what a finished command left behind.
type Result struct {
	ExitCode int
	Stderr   []string
}

// StderrText joins the captured stderr lines.
func (r *Result) StderrText() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Stderr, "\n")
}

// Executor abstracts command execution to ease testing.
type Executor interface {
	Run(ctx context.Context, cmd Command, onLine LineHandler) (*Result, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// SystemExecutor executes commands using the local OS.
type SystemExecutor struct{}

// NewSystemExecutor returns an Executor backed by os/exec.
func NewSystemExecutor() *SystemExecutor {
	return &SystemExecutor{}
}

// Run starts cmd and blocks until it exits, streaming both outputs to onLine.
// A non-zero exit is returned as an error together with the Result.
func (SystemExecutor) Run(ctx context.Context, cmd Command, onLine LineHandler) (*Result, error) {
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), cmd.Env...)
	}

	if cmd.StdinFile != "" {
		in, err := os.Open(cmd.StdinFile)
		if err != nil {
			return nil, errors.Wrapf(err, "open input %s", cmd.StdinFile)
		}
		defer in.Close()
		proc.Stdin = in
	}

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stderr pipe")
	}

	if err := proc.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", cmd.Name)
	}

	result := &Result{}
	var mu sync.Mutex
	emit := func(stream Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		if stream == Stderr {
			result.Stderr = append(result.Stderr, line)
		}
		if onLine != nil {
			onLine(stream, line)
		}
	}

	var readers errgroup.Group
	readers.Go(func() error { return scanLines(stdout, Stdout, emit) })
	readers.Go(func() error { return scanLines(stderr, Stderr, emit) })
	readErr := readers.Wait()

	waitErr := proc.Wait()
	if proc.ProcessState != nil {
		result.ExitCode = proc.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return result, errors.Wrapf(waitErr, "%s exited with code %d", cmd.Name, result.ExitCode)
	}
	if readErr != nil {
		return result, errors.Wrapf(readErr, "read output of %s", cmd.Name)
	}
	return result, nil
}

// Output runs name and returns its stdout.
func (SystemExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	proc := exec.CommandContext(ctx, name, args...)
	out, err := proc.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, errors.Wrap(err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

func scanLines(r io.Reader, stream Stream, emit LineHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(stream, strings.TrimRight(scanner.Text(), "\r"))
	}
	return scanner.Err()
}

var _ Executor = (*SystemExecutor)(nil)
