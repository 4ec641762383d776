package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered
	// stale. Large model downloads can legitimately hold a lock for a long
	// time, so the threshold is generous.
	StaleLockThreshold = 6 * time.Hour
)

var (
	ErrLockExists = errors.New("install lock exists: another install of this dependency may be in progress")
)

// LockHeldError reports a lock owned by a live install. It matches
// ErrLockExists with errors.Is.
type LockHeldError struct {
	Path       string
	Dependency string
	PID        int
}

func (e *LockHeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("install lock exists: another install of %s may be in progress (pid %d, %s)", e.Dependency, e.PID, e.Path)
	}
	return fmt.Sprintf("install lock exists: another install of %s may be in progress (%s)", e.Dependency, e.Path)
}

func (e *LockHeldError) Is(target error) bool {
	return target == ErrLockExists
}

// Hint names the lock file to remove once no install is running.
func (e *LockHeldError) Hint() string {
	return fmt.Sprintf("wait for the other install to finish; if none is running, delete %s and retry", e.Path)
}

// Lock is an exclusive per-dependency install lock.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the install lock for name in dir. It fails with a
// *LockHeldError when a live lock is held. A lock whose owning process is
// gone, or which is older than StaleLockThreshold, is taken over. Uses
// O_CREATE|O_EXCL for atomic lock creation.
func AcquireLock(ctx context.Context, dir, name string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, "install-"+sanitize(name)+".lock")

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		pid, stale := isLockStale(ctx, lockPath)
		if !stale {
			return nil, &LockHeldError{Path: lockPath, Dependency: name, PID: pid}
		}
		// Remove stale lock and retry once.
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err != nil {
			return nil, &LockHeldError{Path: lockPath, Dependency: name}
		}
	}

	lockData := fmt.Sprintf("pid=%d\ndependency=%s\ntimestamp=%s\n", os.Getpid(), name, time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

// isLockStale reports the recorded owner PID and whether the lock can be
// taken over: its owner no longer runs, or it is older than
// StaleLockThreshold.
func isLockStale(ctx context.Context, lockPath string) (int, bool) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return 0, false
	}
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, false
	}
	pid := lockOwner(string(data))
	if pid > 0 && pid != os.Getpid() {
		if alive, err := process.PidExistsWithContext(ctx, int32(pid)); err == nil && !alive {
			return pid, true
		}
	}
	return pid, time.Since(info.ModTime()) > StaleLockThreshold
}

// lockOwner extracts the pid= line written by AcquireLock, or 0.
func lockOwner(data string) int {
	for _, line := range strings.Split(data, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "pid=")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(value)
		if err != nil || pid <= 0 || pid > 1<<30 {
			return 0
		}
		return pid
	}
	return 0
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
