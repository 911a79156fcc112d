package storage

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound reports that the bucket, folder or object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrNotConfigured is returned when no storage credentials were provided.
var ErrNotConfigured = errors.New("object storage not configured")

// Error is a failed storage API call.
type Error struct {
	Op     string
	Status int
	Body   string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("storage %s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("storage %s returned status %d: %s", e.Op, e.Status, e.Body)
}

func (e *Error) Unwrap() error { return e.cause }

// Transient reports whether retrying the same call might succeed.
func (e *Error) Transient() bool {
	if e.cause != nil && !errors.Is(e.cause, ErrNotFound) {
		return true
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}
