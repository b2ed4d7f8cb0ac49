package models

import (
	"errors"
	"fmt"
)

// ErrNoActiveProvider is returned when resolution exhausts the tenant,
// default, and first-active tiers with nothing found.
var ErrNoActiveProvider = errors.New("no active provider configured")

// ErrProviderNotFound is returned when a provider lookup misses.
var ErrProviderNotFound = errors.New("provider not found")

// ErrMappingNotFound is returned when a tenant mapping lookup misses.
var ErrMappingNotFound = errors.New("tenant provider mapping not found")

// ValidationError reports a malformed configuration shape. It is a client
// error at the service boundary and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DecryptionError wraps an API-key decryption failure so callers can
// degrade gracefully (masking shows sk-[ERROR], startup verification
// triggers provider recreation) instead of treating it as an unexpected
// fault.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("credential decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// IsDecryptionError reports whether err is (or wraps) a DecryptionError.
func IsDecryptionError(err error) bool {
	var de *DecryptionError
	return errors.As(err, &de)
}
