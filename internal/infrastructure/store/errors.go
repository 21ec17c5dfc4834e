package store

import "errors"

// Domain-specific errors for bundle cache operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when no bundle is cached for an account.
	ErrNotFound = errors.New("store: bundle not found")

	// ErrEmptyAccountID is returned when an operation is attempted
	// without an account identifier.
	ErrEmptyAccountID = errors.New("store: account id cannot be empty")

	// ErrEmptyBundle is returned when attempting to cache an empty bundle.
	ErrEmptyBundle = errors.New("store: bundle cannot be empty")
)
