package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy of the retrieval subsystem. Transports map these to status
// codes with errors.Is.
var (
	// ErrInvalidRequest signals a request rejected before any plan is built.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConfiguration signals a fatal startup misconfiguration.
	ErrConfiguration = errors.New("configuration error")
	// ErrIndexTimeout signals that an index did not become ready in time.
	ErrIndexTimeout = errors.New("index readiness timeout")
	// ErrEmbeddingUnavailable signals that no embedding could be produced for a query.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrBackendOperation signals that the store rejected or failed a query.
	ErrBackendOperation = errors.New("backend operation failed")
	// ErrBackendUnavailable signals that the store could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrIndexNotReady signals a query against an index that is not ready.
	// It is a backend operation failure.
	ErrIndexNotReady = fmt.Errorf("%w: index not ready", ErrBackendOperation)
)

// Invalid wraps ErrInvalidRequest with a reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// BackendError keeps the store diagnostic while classifying it as kind
// (ErrBackendOperation or ErrBackendUnavailable).
type BackendError struct {
	Kind error
	Op   string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes both the classification and the underlying cause.
func (e *BackendError) Unwrap() []error { return []error{e.Kind, e.Err} }
