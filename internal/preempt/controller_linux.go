//go:build linux

package preempt

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"CSU/internal/executor"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultControllers returns the controllers for the running OS.
func DefaultControllers(exec executor.Executor) (ProcessController, ServiceController) {
	return &ProcfsController{Root: "/proc"}, &SystemdController{exec: exec}
}

// ProcfsController finds processes by scanning /proc and kills them with SIGKILL.
type ProcfsController struct {
	Root string
}

// Find matches name against each process's comm, falling back to the executable
// base name because comm is truncated to 15 bytes.
func (c *ProcfsController) Find(_ context.Context, name string) ([]int, error) {
	entries, err := os.ReadDir(c.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", c.Root)
	}

	self := os.Getpid()
	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		if c.matches(pid, name) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (c *ProcfsController) matches(pid int, name string) bool {
	dir := filepath.Join(c.Root, strconv.Itoa(pid))

	if comm, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
		if strings.TrimSpace(string(comm)) == name {
			return true
		}
	}
	if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
		base := filepath.Base(strings.TrimSuffix(exe, " (deleted)"))
		return base == name || strings.TrimSuffix(base, ".exe") == name
	}
	return false
}

func (c *ProcfsController) Kill(_ context.Context, pid int) error {
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return errors.Wrapf(err, "kill pid %d", pid)
	}
	return nil
}

// SystemdController drives a systemd unit through systemctl.
type SystemdController struct {
	exec executor.Executor
}

func (c *SystemdController) Query(ctx context.Context, name string) (ServiceState, error) {
	out, err := c.exec.Output(ctx, "systemctl", "show", "--property=LoadState,ActiveState", unitName(name))
	if err != nil {
		return ServiceUnknown, errors.Wrapf(err, "query unit %s", name)
	}

	props := parseProperties(string(out))
	if props["LoadState"] == "not-found" {
		return ServiceUnknown, ErrServiceNotFound
	}

	switch props["ActiveState"] {
	case "active", "activating", "reloading":
		return ServiceRunning, nil
	case "deactivating":
		return ServiceStopPending, nil
	case "inactive", "failed":
		return ServiceStopped, nil
	default:
		return ServiceUnknown, nil
	}
}

func (c *SystemdController) Stop(ctx context.Context, name string) error {
	if _, err := c.exec.Output(ctx, "systemctl", "stop", "--no-block", unitName(name)); err != nil {
		return errors.Wrapf(err, "stop unit %s", name)
	}
	return nil
}

func (c *SystemdController) Start(ctx context.Context, name string) error {
	if _, err := c.exec.Output(ctx, "systemctl", "start", unitName(name)); err != nil {
		return errors.Wrapf(err, "start unit %s", name)
	}
	return nil
}

func unitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

func parseProperties(out string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			props[key] = value
		}
	}
	return props
}
