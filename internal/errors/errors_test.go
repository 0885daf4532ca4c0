package errors

import (
	"fmt"
	"testing"
)

func TestRegistryError_Unwrap(t *testing.T) {
	cause := New("disk full")
	err := NewRegistryError("save", cause)

	if !Is(err, cause) {
		t.Errorf("expected errors.Is to match the wrapped cause")
	}
	if got := err.Error(); got != "registry save: disk full" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestRegistryError_AsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create instance: %w", NewRegistryError("insert", New("boom")))

	var regErr *RegistryError
	if !As(err, &regErr) {
		t.Fatal("expected errors.As to find RegistryError through wrapping")
	}
	if regErr.Op != "insert" {
		t.Errorf("Op = %q, want %q", regErr.Op, "insert")
	}
}

func TestLockError_Unwrap(t *testing.T) {
	cause := New("permission denied")
	err := NewLockError("/tmp/template.lock", "exclusive", cause)

	if !Is(err, cause) {
		t.Errorf("expected errors.Is to match the wrapped cause")
	}
	if got := err.Error(); got != "lock exclusive (/tmp/template.lock): permission denied" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrNotPrepared, ErrLimitReached, ErrNameExhausted, ErrHookNotFound}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %v unexpectedly matches %v", a, b)
			}
		}
	}
}
