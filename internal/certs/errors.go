package certs

import "errors"

// Domain errors for certificate bundle handling.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidBundle is returned when a bundle is truncated or malformed.
	// Parsing never produces a partial result.
	ErrInvalidBundle = errors.New("certs: invalid certificate bundle")

	// ErrMaterializeFailed is returned when writing credential files fails.
	ErrMaterializeFailed = errors.New("certs: materializing bundle failed")

	// ErrFilesIncomplete is returned when one or more credential files are
	// missing from a directory. The file set is all-or-nothing.
	ErrFilesIncomplete = errors.New("certs: credential file set incomplete")

	// ErrTLSContext is returned when the TLS client configuration cannot be
	// built from the materialized files.
	ErrTLSContext = errors.New("certs: building TLS context failed")
)
