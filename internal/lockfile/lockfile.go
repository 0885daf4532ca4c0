// Package lockfile provides the advisory file lock that serializes template
// rebuilds against instance creation. A rebuild takes the lock exclusively;
// each instance copy takes it shared, so copies run concurrently with each
// other but never with a rebuild.
//
// The lock file carries no data; only its flock(2) state matters.
package lockfile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/instant-demo/demopool/internal/errors"
)

// Coordinator hands out shared and exclusive holds on one well-known lock
// file. Construct one per process and pass it to the operations that need
// it; each acquisition returns its own Guard so concurrent operations in the
// same process contend through the kernel like separate processes do.
type Coordinator struct {
	path string
}

// New creates a Coordinator for the given lock file path. The file and its
// parent directory are created on first acquisition.
func New(path string) *Coordinator {
	return &Coordinator{path: path}
}

// Path returns the lock file path.
func (c *Coordinator) Path() string {
	return c.path
}

// Exclusive blocks until no other holder (shared or exclusive) exists, then
// returns a Guard holding the exclusive lock.
func (c *Coordinator) Exclusive() (*Guard, error) {
	return c.acquire("exclusive", func(fl *flock.Flock) error { return fl.Lock() })
}

// Shared blocks only against an exclusive holder and returns a Guard holding
// a shared lock. Any number of shared Guards may be held concurrently.
func (c *Coordinator) Shared() (*Guard, error) {
	return c.acquire("shared", func(fl *flock.Flock) error { return fl.RLock() })
}

// TryExclusive attempts an exclusive acquisition without blocking.
// Returns a nil Guard and false if another holder exists.
func (c *Coordinator) TryExclusive() (*Guard, bool, error) {
	return c.tryAcquire("exclusive", func(fl *flock.Flock) (bool, error) { return fl.TryLock() })
}

// TryShared attempts a shared acquisition without blocking.
// Returns a nil Guard and false if an exclusive holder exists.
func (c *Coordinator) TryShared() (*Guard, bool, error) {
	return c.tryAcquire("shared", func(fl *flock.Flock) (bool, error) { return fl.TryRLock() })
}

func (c *Coordinator) acquire(op string, lock func(*flock.Flock) error) (*Guard, error) {
	if err := c.ensureDir(op); err != nil {
		return nil, err
	}
	fl := flock.New(c.path)
	if err := lock(fl); err != nil {
		return nil, errors.NewLockError(c.path, op, err)
	}
	return &Guard{fl: fl, path: c.path}, nil
}

func (c *Coordinator) tryAcquire(op string, lock func(*flock.Flock) (bool, error)) (*Guard, bool, error) {
	if err := c.ensureDir(op); err != nil {
		return nil, false, err
	}
	fl := flock.New(c.path)
	ok, err := lock(fl)
	if err != nil {
		return nil, false, errors.NewLockError(c.path, op, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Guard{fl: fl, path: c.path}, true, nil
}

func (c *Coordinator) ensureDir(op string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return errors.NewLockError(c.path, op, err)
	}
	return nil
}

// Guard is one held lock. Release must run on all exit paths of the owning
// operation; defer it immediately after acquisition.
type Guard struct {
	fl       *flock.Flock
	path     string
	mu       sync.Mutex
	released bool
}

// Release drops the lock. Safe to call more than once.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil
	}
	if err := g.fl.Unlock(); err != nil {
		return errors.NewLockError(g.path, "release", err)
	}
	g.released = true
	return nil
}
