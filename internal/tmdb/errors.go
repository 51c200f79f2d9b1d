package tmdb

import (
	"errors"
	"fmt"
)

// TransientError is a failure worth retrying: network errors, timeouts,
// rate limiting and 5xx responses.
type TransientError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient error on %s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("transient error on %s: %v", e.Path, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError means the client cannot work at all, e.g. missing or rejected credentials.
type FatalError struct {
	Path       string
	StatusCode int
	Reason     string
}

func (e *FatalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fatal error on %s: status %d: %s", e.Path, e.StatusCode, e.Reason)
	}
	return "fatal error: " + e.Reason
}

// StatusError is any other non-2xx response, e.g. 404 for an unknown id.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s: %s", e.StatusCode, e.Path, e.Body)
}

// IsTransient reports whether err wraps a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err wraps a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
