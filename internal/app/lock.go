package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another colsync process holds the catalog lock.
var ErrLocked = errors.New("another colsync process is modifying the catalog")

// catalogLock serializes mutating commands across processes.
type catalogLock struct {
	path string
	lock *flock.Flock
}

func newCatalogLock(path string) *catalogLock {
	return &catalogLock{path: path, lock: flock.New(path)}
}

// acquire takes the lock without blocking. Repeated calls are no-ops.
func (l *catalogLock) acquire() error {
	if l.lock.Locked() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring catalog lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (l *catalogLock) release() error {
	if !l.lock.Locked() {
		return nil
	}
	return l.lock.Unlock()
}
