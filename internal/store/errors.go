package store

import (
	"errors"
	"fmt"
)

// StoreError represents a persistence failure that the service cannot
// recover from locally: integrity conflicts that survive the savepoint
// retry, connectivity loss, lock timeouts. Surfaced as HTTP 5xx.
type StoreError struct {
	message string
	cause   error
}

// NewStoreError creates a new store error wrapping an optional cause.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{message: message, cause: cause}
}

// Error returns the error message
func (e *StoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying cause
func (e *StoreError) Unwrap() error {
	return e.cause
}

// IsStoreError checks if an error is a store error
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
