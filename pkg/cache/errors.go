package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("cache backend closed")

	// ErrEmptyKey is returned when a key is empty.
	ErrEmptyKey = errors.New("cache key cannot be empty")

	// ErrCorruptEntry is returned when a stored value cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// BackendError wraps a fault raised by a cache backend. The proxy pipeline
// treats it as a miss on read and drops the write on put.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsBackendError reports whether err is a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
