package openmemory

import (
	"errors"
	"fmt"
)

var (
	// ErrClientNotReady is returned when an operation runs before Initialize.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrAuthenticationRequired is returned when a mutating call is attempted
	// without a confirmed session. No network call is made.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidInput is returned when caller-supplied input violates an
	// operation precondition. No network call is made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotSupported is returned for operations the backend interface
	// implies but does not implement.
	ErrNotSupported = errors.New("operation not supported by backend")
	// ErrBackendRejected is the sentinel behind every [StatusError].
	ErrBackendRejected = errors.New("backend rejected the call")
	// ErrMalformedResponse is the sentinel behind every [DecodeError].
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrSessionExpired is returned when a restore finds the persisted flag
	// set but the credential no longer valid.
	ErrSessionExpired = errors.New("session expired")
)

// errInvalidJSON is the decode cause for a 200 body that is not JSON at all.
var errInvalidJSON = errors.New("body is not valid JSON")

// StatusError reports a non-200 backend response. The message carries both
// the status code and the raw body text so callers can distinguish
// "backend rejected the call" from transport-level failures.
type StatusError struct {
	Code uint16
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend request failed: %d %s", e.Code, e.Body)
}

// Is reports [ErrBackendRejected] for errors.Is matching.
func (e *StatusError) Is(target error) bool { return target == ErrBackendRejected }

// DecodeError reports a 200 response whose body could not be decoded, or a
// recognized operation receiving an unrecognized response shape. It is a
// distinct failure kind from [StatusError].
type DecodeError struct {
	Op    string
	Cause error
}

// Error implements error.
func (e *DecodeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: unrecognized response shape", e.Op)
	}
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying decode cause.
func (e *DecodeError) Unwrap() error { return e.Cause }

// Is reports [ErrMalformedResponse] for errors.Is matching.
func (e *DecodeError) Is(target error) bool { return target == ErrMalformedResponse }
