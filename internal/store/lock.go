package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DirLock guards a data directory against concurrent writer processes.
// Two retrievald instances sharing an index directory would corrupt the
// lexical index; the lock makes the second instance fail fast instead.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for the given data directory.
// The lock file lives at <dir>/.retrievald.lock.
func NewDirLock(dir string) *DirLock {
	lockPath := filepath.Join(dir, ".retrievald.lock")
	return &DirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns an error if another process holds it.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire data directory lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("data directory %s is in use by another retrievald process", filepath.Dir(l.path))
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.flock.Unlock()
}
