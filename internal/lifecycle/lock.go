package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
)

// lockFile is the project-wide exclusive lock's filename, distinct from
// the job queue's own ".queue.lock" (internal/queue/store.go) — this one
// guards the whole state directory, per spec.md section 4's "Ownership"
// paragraph: "the state directory is exclusively owned by at most one live
// process, enforced by an OS-level file lock with stale-lock detection."
const lockFile = ".agent-brain.lock"

// ProjectLock is the per-project exclusive lock acquired at startup,
// grounded on internal/embed.FileLock's gofrs/flock usage, extended with
// the PID-based stale-lock detection spec.md section 4 calls for: the lock
// file's contents are the holder's PID, and a lock whose PID no longer
// names a live process is cleaned up rather than left to block forever.
type ProjectLock struct {
	path string
	fl   *flock.Flock
}

// NewProjectLock builds a lock rooted at stateDir.
func NewProjectLock(stateDir string) *ProjectLock {
	path := filepath.Join(stateDir, lockFile)
	return &ProjectLock{path: path, fl: flock.New(path)}
}

// Acquire takes the exclusive lock, first clearing it if it is stale (its
// recorded PID no longer corresponds to a running process). Returns false
// if another live process currently holds it.
func (l *ProjectLock) Acquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create state directory: %w", err)
	}

	acquired, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire project lock: %w", err)
	}
	if !acquired {
		if l.staleClean() {
			acquired, err = l.fl.TryLock()
			if err != nil {
				return false, fmt.Errorf("acquire project lock after stale cleanup: %w", err)
			}
		}
		if !acquired {
			return false, nil
		}
	}

	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		l.fl.Unlock()
		return false, fmt.Errorf("write lock pid: %w", err)
	}
	return true, nil
}

// staleClean reports whether it removed a lock file whose PID no longer
// names a live process. A lock file this process cannot read, or whose
// contents don't parse as a PID, is treated as not stale (left alone —
// better to fail loudly than to seize a lock we can't prove is dead).
func (l *ProjectLock) staleClean() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false
	}
	if processAlive(pid) {
		return false
	}
	return os.Remove(l.path) == nil
}

// Release drops the lock and removes the lock file.
func (l *ProjectLock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release project lock: %w", err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// processAlive mirrors internal/daemon.processExists: on Unix, FindProcess
// always succeeds, so liveness is determined by signaling PID 0 (no-op
// signal) and checking whether it was delivered.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
