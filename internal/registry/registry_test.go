package registry

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/instant-demo/demopool/internal/errors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"), nil)
}

func TestInsert_ActiveRecord(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Now()

	rec, err := r.Insert(false, "ab12cd34ef", now, 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if rec.ID != 1 {
		t.Errorf("ID = %d, want 1", rec.ID)
	}
	if len(rec.Name) != nameLength {
		t.Errorf("name %q has length %d, want %d", rec.Name, len(rec.Name), nameLength)
	}
	if rec.IsPrepared() {
		t.Error("record inserted with a client hash must not be prepared")
	}
	if rec.Created == nil || !rec.Created.Equal(now) {
		t.Errorf("Created = %v, want %v", rec.Created, now)
	}
	if rec.IPHash == nil || *rec.IPHash != "ab12cd34ef" {
		t.Errorf("IPHash = %v, want ab12cd34ef", rec.IPHash)
	}
}

func TestInsert_PreparedRecord(t *testing.T) {
	r := newTestRegistry(t)

	rec, err := r.Insert(true, "", time.Now(), 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if !rec.IsPrepared() {
		t.Error("prepared insert must produce a prepared record")
	}
	// Created and IPHash stay in lock-step: both nil while prepared.
	if rec.Created != nil || rec.IPHash != nil {
		t.Errorf("prepared record must have nil Created and IPHash, got %v / %v", rec.Created, rec.IPHash)
	}
}

func TestInsert_EnforcesLimit(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 3; i++ {
		if _, err := r.Insert(true, "", time.Now(), 3); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	if _, err := r.Insert(true, "", time.Now(), 3); !errors.Is(err, errors.ErrLimitReached) {
		t.Errorf("expected ErrLimitReached at the ceiling, got %v", err)
	}

	// Unlimited insert still succeeds.
	if _, err := r.Insert(true, "", time.Now(), 0); err != nil {
		t.Errorf("unlimited Insert failed: %v", err)
	}
}

func TestInsert_NamesAreUnique(t *testing.T) {
	r := newTestRegistry(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rec, err := r.Insert(i%2 == 0, "hash", time.Now(), 0)
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		if seen[rec.Name] {
			t.Fatalf("duplicate name allocated: %q", rec.Name)
		}
		seen[rec.Name] = true
	}
}

func TestInsert_ConcurrentCreatorsGetDistinctRows(t *testing.T) {
	r := newTestRegistry(t)

	const n = 20
	var wg sync.WaitGroup
	results := make(chan Record, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := r.Insert(false, "clienthash", time.Now(), 0)
			if err != nil {
				t.Errorf("concurrent Insert failed: %v", err)
				return
			}
			results <- rec
		}()
	}
	wg.Wait()
	close(results)

	names := make(map[string]bool)
	ids := make(map[int64]bool)
	for rec := range results {
		if names[rec.Name] {
			t.Errorf("duplicate name under concurrency: %q", rec.Name)
		}
		if ids[rec.ID] {
			t.Errorf("duplicate id under concurrency: %d", rec.ID)
		}
		names[rec.Name] = true
		ids[rec.ID] = true
	}
	if len(names) != n {
		t.Errorf("expected %d distinct rows, got %d", n, len(names))
	}
}

func TestGrabFirstPrepared(t *testing.T) {
	r := newTestRegistry(t)

	first, err := r.Insert(true, "", time.Now(), 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := r.Insert(true, "", time.Now(), 0); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	now := time.Now()
	rec, found, err := r.GrabFirstPrepared("deadbeef00", now)
	if err != nil {
		t.Fatalf("GrabFirstPrepared failed: %v", err)
	}
	if !found {
		t.Fatal("expected a prepared record to be found")
	}
	if rec.ID != first.ID {
		t.Errorf("grabbed id %d, want oldest prepared %d", rec.ID, first.ID)
	}
	if rec.IsPrepared() {
		t.Error("grabbed record must be active")
	}

	// Only one prepared record should remain.
	n, err := r.Count(Prepared())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("prepared count = %d, want 1", n)
	}
}

func TestGrabFirstPrepared_EmptyPool(t *testing.T) {
	r := newTestRegistry(t)

	_, found, err := r.GrabFirstPrepared("deadbeef00", time.Now())
	if err != nil {
		t.Fatalf("GrabFirstPrepared failed: %v", err)
	}
	if found {
		t.Error("expected no prepared record in an empty registry")
	}
}

func TestGrabFirstPrepared_NoDoubleGrab(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Insert(true, "", time.Now(), 0); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	grabbed := make(chan Record, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, found, err := r.GrabFirstPrepared("clienthash", time.Now())
			if err != nil {
				t.Errorf("GrabFirstPrepared failed: %v", err)
				return
			}
			if found {
				grabbed <- rec
			}
		}()
	}
	wg.Wait()
	close(grabbed)

	count := 0
	for range grabbed {
		count++
	}
	if count != 1 {
		t.Errorf("prepared record grabbed %d times, want exactly 1", count)
	}
}

func TestGrab_SecondGrabFailsWithoutMutation(t *testing.T) {
	r := newTestRegistry(t)

	rec, err := r.Insert(true, "", time.Now(), 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	firstNow := time.Now()
	grabbed, err := r.Grab(rec.ID, "firsthash", firstNow)
	if err != nil {
		t.Fatalf("first Grab failed: %v", err)
	}

	_, err = r.Grab(rec.ID, "secondhash", time.Now().Add(time.Hour))
	if !errors.Is(err, errors.ErrNotPrepared) {
		t.Fatalf("second Grab should fail with ErrNotPrepared, got %v", err)
	}

	// The failed grab must not have mutated the record.
	after, err := r.Get(WithID(rec.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *after.IPHash != *grabbed.IPHash {
		t.Errorf("IPHash mutated by failed grab: %q", *after.IPHash)
	}
	if !after.Created.Equal(*grabbed.Created) {
		t.Errorf("Created mutated by failed grab: %v", after.Created)
	}
}

func TestGrab_NotFound(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Grab(42, "hash", time.Now()); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	r := newTestRegistry(t)

	rec, err := r.Insert(false, "hash", time.Now(), 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := r.Delete(rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := r.Get(WithID(rec.ID)); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := r.Delete(rec.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("deleting twice should fail with ErrNotFound, got %v", err)
	}
}

func TestSequence_SurvivesDeletion(t *testing.T) {
	r := newTestRegistry(t)

	var last Record
	for i := 0; i < 5; i++ {
		rec, err := r.Insert(false, "hash", time.Now(), 0)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		last = rec
	}
	if err := r.Delete(last.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	seq, err := r.Sequence()
	if err != nil {
		t.Fatalf("Sequence failed: %v", err)
	}
	// The total-ever-created counter does not decrease with deletions.
	if seq != 5 {
		t.Errorf("Sequence = %d, want 5", seq)
	}

	// The next insert does not reuse the deleted id.
	rec, err := r.Insert(false, "hash", time.Now(), 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rec.ID != 6 {
		t.Errorf("ID after delete = %d, want 6", rec.ID)
	}
}

func TestFilters(t *testing.T) {
	r := newTestRegistry(t)

	active, err := r.Insert(false, "hash", time.Now(), 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := r.Insert(true, "", time.Now(), 0); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if n, _ := r.Count(nil); n != 2 {
		t.Errorf("Count(nil) = %d, want 2", n)
	}
	if n, _ := r.Count(Active()); n != 1 {
		t.Errorf("Count(Active) = %d, want 1", n)
	}
	if n, _ := r.Count(Prepared()); n != 1 {
		t.Errorf("Count(Prepared) = %d, want 1", n)
	}

	got, err := r.Get(WithName(active.Name))
	if err != nil {
		t.Fatalf("Get by name failed: %v", err)
	}
	if got.ID != active.ID {
		t.Errorf("Get(WithName) returned id %d, want %d", got.ID, active.ID)
	}

	all, err := r.All(nil)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 || all[0].ID > all[1].ID {
		t.Errorf("All must return records in insertion order, got %+v", all)
	}
}

func TestPersistence_AcrossRegistryHandles(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "registry.json")
	lockPath := filepath.Join(dir, "registry.lock")

	r1 := New(statePath, lockPath, nil)
	rec, err := r1.Insert(false, "hash", time.Now(), 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// A second handle (as another process would hold) sees the same state.
	r2 := New(statePath, lockPath, nil)
	got, err := r2.Get(WithID(rec.ID))
	if err != nil {
		t.Fatalf("Get through second handle failed: %v", err)
	}
	if got.Name != rec.Name {
		t.Errorf("Name = %q, want %q", got.Name, rec.Name)
	}
}
