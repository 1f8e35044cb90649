package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ProcessLock keeps two setup runs from working on the same directory.
type ProcessLock struct {
	lockPath string
	pidPath  string
	lockFile *os.File
	held     bool
}

// ErrLockHeld is returned when another instance owns the lock.
type ErrLockHeld struct {
	HolderPID int
	LockPath  string
}

func (e *ErrLockHeld) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("another setup run is in progress (PID %d)", e.HolderPID)
	}
	return fmt.Sprintf("another setup run is in progress (lock %s)", e.LockPath)
}

// NewProcessLock returns a lock living in dir.
func NewProcessLock(dir string) *ProcessLock {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ProcessLock{
		lockPath: filepath.Join(dir, "setup.lock"),
		pidPath:  filepath.Join(dir, "setup.pid"),
	}
}

// Acquire takes the lock without blocking.
func (p *ProcessLock) Acquire() error {
	if p.held {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(p.lockPath), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create lock directory for %s", p.lockPath)
	}

	f, err := os.OpenFile(p.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to create lock file %s", p.lockPath)
	}

	locked, err := tryLock(f)
	if err != nil {
		f.Close()
		return errors.Wrap(err, "failed to acquire lock")
	}
	if !locked {
		f.Close()
		return &ErrLockHeld{HolderPID: p.HolderPID(), LockPath: p.lockPath}
	}

	p.lockFile = f
	p.held = true
	_ = os.WriteFile(p.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
	return nil
}

// Release drops the lock if held.
func (p *ProcessLock) Release() error {
	if !p.held || p.lockFile == nil {
		return nil
	}

	os.Remove(p.pidPath)
	err := unlock(p.lockFile)
	p.lockFile.Close()
	p.lockFile = nil
	p.held = false

	if err != nil {
		return errors.Wrap(err, "failed to release lock")
	}
	return nil
}

// IsHeld reports whether this instance owns the lock.
func (p *ProcessLock) IsHeld() bool {
	return p.held
}

// HolderPID returns the PID recorded by the current holder, or 0.
func (p *ProcessLock) HolderPID() int {
	data, err := os.ReadFile(p.pidPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
