package executor

import (
	"context"
	"sync"
)

// Call is one recorded invocation on a Fake.
type Call struct {
	Method  string
	Command Command
}

// Fake records invocations and delegates to the configured funcs.
type Fake struct {
	RunFunc    func(ctx context.Context, cmd Command, onLine LineHandler) (*Result, error)
	OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Run(ctx context.Context, cmd Command, onLine LineHandler) (*Result, error) {
	f.record(Call{Method: "Run", Command: cmd})
	if f.RunFunc == nil {
		return &Result{}, nil
	}
	return f.RunFunc(ctx, cmd, onLine)
}

func (f *Fake) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.record(Call{Method: "Output", Command: Command{Name: name, Args: args}})
	if f.OutputFunc == nil {
		return nil, nil
	}
	return f.OutputFunc(ctx, name, args...)
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

var _ Executor = (*Fake)(nil)
