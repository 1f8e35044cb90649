package preempt

import (
	"context"

	"github.com/pkg/errors"
)

// ErrServiceNotFound is returned by ServiceController.Query when no service has the name.
var ErrServiceNotFound = errors.New("service not found")

// ServiceState is the coarse lifecycle state of an OS service.
type ServiceState int

const (
	ServiceUnknown ServiceState = iota
	ServiceStopped
	ServiceStopPending
	ServiceRunning
)

func (s ServiceState) String() string {
	switch s {
	case ServiceStopped:
		return "stopped"
	case ServiceStopPending:
		return "stopping"
	case ServiceRunning:
		return "running"
	default:
		return "unknown"
	}
}

// ProcessController enumerates and terminates local processes by exact name.
type ProcessController interface {
	Find(ctx context.Context, name string) ([]int, error)
	Kill(ctx context.Context, pid int) error
}

// ServiceController queries and controls one OS-managed service.
type ServiceController interface {
	Query(ctx context.Context, name string) (ServiceState, error)
	// Stop requests a stop and returns without waiting for it.
	Stop(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
}
