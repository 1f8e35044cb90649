//go:build !linux && !windows

package preempt

import (
	"context"

	"CSU/internal/executor"

	"github.com/pkg/errors"
)

var errUnsupported = errors.New("process control is not supported on this platform")

// DefaultControllers returns controllers that report every operation as unsupported.
func DefaultControllers(_ executor.Executor) (ProcessController, ServiceController) {
	return unsupported{}, unsupported{}
}

type unsupported struct{}

func (unsupported) Find(context.Context, string) ([]int, error) { return nil, errUnsupported }
func (unsupported) Kill(context.Context, int) error             { return errUnsupported }
func (unsupported) Query(context.Context, string) (ServiceState, error) {
	return ServiceUnknown, ErrServiceNotFound
}
func (unsupported) Stop(context.Context, string) error  { return errUnsupported }
func (unsupported) Start(context.Context, string) error { return errUnsupported }
