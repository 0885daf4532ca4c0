package lockfile

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "template.lock"))
}

func TestSharedAllowsConcurrentShared(t *testing.T) {
	c := newTestCoordinator(t)

	g1, err := c.Shared()
	if err != nil {
		t.Fatalf("first shared acquisition failed: %v", err)
	}
	defer g1.Release()

	g2, ok, err := c.TryShared()
	if err != nil {
		t.Fatalf("second shared acquisition failed: %v", err)
	}
	if !ok {
		t.Fatal("second shared acquisition should succeed while a shared lock is held")
	}
	defer g2.Release()
}

func TestExclusiveBlocksShared(t *testing.T) {
	c := newTestCoordinator(t)

	g, err := c.Exclusive()
	if err != nil {
		t.Fatalf("exclusive acquisition failed: %v", err)
	}

	if _, ok, err := c.TryShared(); err != nil {
		t.Fatalf("TryShared failed: %v", err)
	} else if ok {
		t.Error("shared acquisition should fail while an exclusive lock is held")
	}

	if err := g.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	g2, ok, err := c.TryShared()
	if err != nil {
		t.Fatalf("TryShared after release failed: %v", err)
	}
	if !ok {
		t.Fatal("shared acquisition should succeed after the exclusive lock is released")
	}
	defer g2.Release()
}

func TestSharedBlocksExclusive(t *testing.T) {
	c := newTestCoordinator(t)

	g, err := c.Shared()
	if err != nil {
		t.Fatalf("shared acquisition failed: %v", err)
	}

	if _, ok, err := c.TryExclusive(); err != nil {
		t.Fatalf("TryExclusive failed: %v", err)
	} else if ok {
		t.Error("exclusive acquisition should fail while a shared lock is held")
	}

	if err := g.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	g2, ok, err := c.TryExclusive()
	if err != nil {
		t.Fatalf("TryExclusive after release failed: %v", err)
	}
	if !ok {
		t.Fatal("exclusive acquisition should succeed after all shared locks are released")
	}
	defer g2.Release()
}

func TestExclusiveWaitsForAllSharedHolders(t *testing.T) {
	c := newTestCoordinator(t)

	g1, err := c.Shared()
	if err != nil {
		t.Fatalf("shared acquisition failed: %v", err)
	}
	g2, err := c.Shared()
	if err != nil {
		t.Fatalf("shared acquisition failed: %v", err)
	}

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g, err := c.Exclusive()
		if err != nil {
			t.Errorf("blocking exclusive acquisition failed: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		g.Release()
	}()

	// Exclusive must not be granted while either shared holder remains.
	select {
	case <-acquired:
		t.Fatal("exclusive lock granted while shared locks are held")
	case <-time.After(50 * time.Millisecond):
	}

	g1.Release()
	select {
	case <-acquired:
		t.Fatal("exclusive lock granted while one shared lock is still held")
	case <-time.After(50 * time.Millisecond):
	}

	g2.Release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("exclusive lock not granted after all shared locks released")
	}
	wg.Wait()
}

func TestRelease_Idempotent(t *testing.T) {
	c := newTestCoordinator(t)

	g, err := c.Exclusive()
	if err != nil {
		t.Fatalf("exclusive acquisition failed: %v", err)
	}

	if err := g.Release(); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got: %v", err)
	}
}

func TestNew_CreatesParentDirOnAcquire(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "nested", "dir", "pool.lock"))

	g, err := c.Exclusive()
	if err != nil {
		t.Fatalf("acquisition with missing parent dir failed: %v", err)
	}
	defer g.Release()
}
