package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrResolution marks a failed resolver call. The crawler recovers from it.
	ErrResolution = errors.New("resolution failed")
	// ErrInputFailure marks an unusable seed input. It is fatal.
	ErrInputFailure = errors.New("input failure")

	ErrInvalidDepth      = errors.New("invalid max depth")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidName       = errors.New("invalid organization name")
)

// ResolutionError wraps a resolver failure with the subject being resolved.
type ResolutionError struct {
	Resolver string // "entity" or "relation"
	Subject  string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s resolver: %q: %v", e.Resolver, e.Subject, e.Err)
}

func (e *ResolutionError) Unwrap() []error { return []error{ErrResolution, e.Err} }

// NewResolutionError creates a ResolutionError.
func NewResolutionError(resolver, subject string, err error) *ResolutionError {
	return &ResolutionError{Resolver: resolver, Subject: subject, Err: err}
}

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
