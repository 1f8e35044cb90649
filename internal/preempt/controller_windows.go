//go:build windows

package preempt

import (
	"context"
	"strings"
	"unsafe"

	"CSU/internal/executor"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// DefaultControllers returns the controllers for the running OS.
func DefaultControllers(_ executor.Executor) (ProcessController, ServiceController) {
	return &ToolhelpController{}, &SCMController{}
}

// ToolhelpController enumerates processes through a toolhelp snapshot.
type ToolhelpController struct{}

func (ToolhelpController) Find(_ context.Context, name string) ([]int, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create process snapshot")
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, errors.Wrap(err, "read process snapshot")
	}

	self := windows.GetCurrentProcessId()
	var pids []int
	for {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if entry.ProcessID != self && strings.EqualFold(strings.TrimSuffix(exe, ".exe"), name) {
			pids = append(pids, int(entry.ProcessID))
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return nil, errors.Wrap(err, "read process snapshot")
		}
	}
	return pids, nil
}

func (ToolhelpController) Kill(_ context.Context, pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return errors.Wrapf(err, "open process %d", pid)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		return errors.Wrapf(err, "terminate process %d", pid)
	}
	return nil
}

// SCMController talks to the service control manager.
type SCMController struct{}

func (SCMController) open(name string) (*mgr.Mgr, *mgr.Service, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to service control manager")
	}
	s, err := m.OpenService(name)
	if err != nil {
		m.Disconnect()
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return nil, nil, ErrServiceNotFound
		}
		return nil, nil, errors.Wrapf(err, "open service %s", name)
	}
	return m, s, nil
}

func (c SCMController) Query(_ context.Context, name string) (ServiceState, error) {
	m, s, err := c.open(name)
	if err != nil {
		return ServiceUnknown, err
	}
	defer m.Disconnect()
	defer s.Close()

	st, err := s.Query()
	if err != nil {
		return ServiceUnknown, errors.Wrapf(err, "query service %s", name)
	}

	switch st.State {
	case svc.Running, svc.StartPending, svc.ContinuePending, svc.Paused, svc.PausePending:
		return ServiceRunning, nil
	case svc.StopPending:
		return ServiceStopPending, nil
	case svc.Stopped:
		return ServiceStopped, nil
	default:
		return ServiceUnknown, nil
	}
}

func (c SCMController) Stop(_ context.Context, name string) error {
	m, s, err := c.open(name)
	if err != nil {
		return err
	}
	defer m.Disconnect()
	defer s.Close()

	if _, err := s.Control(svc.Stop); err != nil {
		return errors.Wrapf(err, "stop service %s", name)
	}
	return nil
}

func (c SCMController) Start(_ context.Context, name string) error {
	m, s, err := c.open(name)
	if err != nil {
		return err
	}
	defer m.Disconnect()
	defer s.Close()

	if err := s.Start(); err != nil {
		return errors.Wrapf(err, "start service %s", name)
	}
	return nil
}
