package core

import (
	"errors"
	"fmt"
)

// Common errors. The taxonomy drives the repository fallback policy:
// permission and validation failures are surfaced directly, while any other
// remote failure is treated as transient and triggers the local fallback.
var (
	// ErrInvalidInput marks a bad or missing field (note id, email, ...).
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied marks an ownership violation (e.g. non-owner delete).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a note or comment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated is returned when an operation requires an identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotConfigured is returned when a required collaborator is missing
	// (no remote store, no comment service).
	ErrNotConfigured = errors.New("remote store not configured")

	// ErrUnknownAction is returned by the message router for unrecognized actions.
	ErrUnknownAction = errors.New("unknown action")
)

// BackendError wraps a transient remote-store failure. It unwraps to the
// underlying cause so callers can still inspect it, but it is never one of
// the sentinel errors above.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient backend failure for the given operation.
func Transient(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

// IsTransient reports whether err should trigger the local fallback.
// Permission, validation and not-found failures are deliberate answers from
// the remote store, not outages, so they propagate directly.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}
