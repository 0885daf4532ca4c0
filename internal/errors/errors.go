// Package errors provides centralized error definitions for the demopool
// codebase: sentinel errors for lookup and precondition failures, and typed
// errors that carry subsystem context for the registry and the lock
// coordinator.
//
// Creating errors:
//
//	err := errors.NewRegistryError("insert", cause)
//	err := errors.NewLockError("/var/lib/demopool/template.lock", "shared", cause)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNotPrepared) { ... }
//
//	var regErr *errors.RegistryError
//	if errors.As(err, &regErr) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Instance-related sentinel errors
var (
	// ErrNotFound indicates that no instance matched the query.
	ErrNotFound = New("instance not found")
	// ErrNotPrepared indicates a grab was attempted on an instance that is
	// already assigned to a client.
	ErrNotPrepared = New("instance is not prepared")
	// ErrLimitReached indicates the configured instance ceiling is exhausted.
	ErrLimitReached = New("instance limit reached")
	// ErrNameExhausted indicates name allocation gave up before finding an
	// unused token.
	ErrNameExhausted = New("could not allocate an unused instance name")
)

// Collaborator sentinel errors
var (
	// ErrHookNotFound indicates the template provides no script for the
	// requested lifecycle event. Callers that treat hooks as optional must
	// check for this sentinel and continue.
	ErrHookNotFound = New("hook script not found")
)

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// RegistryError represents a failure of the durable instance store.
// Store failures are always fatal to the calling operation; they are never
// downgraded to a silent no-op.
type RegistryError struct {
	// Op is the store operation that failed ("load", "save", "insert", ...).
	Op string
	// Err is the underlying cause.
	Err error
}

// NewRegistryError creates a RegistryError for the given store operation.
func NewRegistryError(op string, err error) *RegistryError {
	return &RegistryError{Op: op, Err: err}
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RegistryError) Unwrap() error {
	return e.Err
}

// LockError represents a failure to acquire or release an advisory file
// lock. Like store failures, lock failures propagate unmodified; callers
// must never proceed holding a partial lock.
type LockError struct {
	// Path is the lock file involved.
	Path string
	// Op is the lock operation that failed ("exclusive", "shared", "release").
	Op string
	// Err is the underlying cause.
	Err error
}

// NewLockError creates a LockError for the given lock file and operation.
func NewLockError(path, op string, err error) *LockError {
	return &LockError{Path: path, Op: op, Err: err}
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s (%s): %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LockError) Unwrap() error {
	return e.Err
}
