// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across gateway/cache layers.
var (
	// ErrValidation indicates caller-supplied bad input; never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity or event does not exist,
	// typically meaning local state is ahead of the backend.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the backend is temporarily unable to serve
	// requests (starting up, overloaded). Safe to retry.
	ErrUnavailable = errors.New("temporarily unavailable")

	// ErrTimeout indicates the gateway gave up waiting on the backend.
	ErrTimeout = errors.New("timeout")

	// ErrSyncFailed indicates retries over a transient failure were exhausted.
	ErrSyncFailed = errors.New("sync failed")
)
