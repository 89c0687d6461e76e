package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Validation errors. Reported on result issues rather than aborting a pipeline.
	ErrValidation         = errors.New("validation failed")
	ErrLengthMismatch     = fmt.Errorf("%w: input lengths differ", ErrValidation)
	ErrInsufficientSample = fmt.Errorf("%w: insufficient sample size", ErrValidation)
	ErrMissingVariable    = fmt.Errorf("%w: required variable mapping missing", ErrValidation)
	ErrTooFewLevels       = fmt.Errorf("%w: factor needs at least two levels", ErrValidation)

	// ErrEmptyDataset is structural: a table with no columns cannot be analysed at all.
	ErrEmptyDataset = errors.New("dataset has no columns")

	// Backend errors trigger the local approximation and are never shown to end users.
	ErrBackendUnavailable = errors.New("statistics backend unavailable")

	// Degenerate numeric input (zero variance etc.)
	ErrComputation = errors.New("degenerate input for computation")
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, reason)
}

func NewLengthMismatchError(what string, want, got int) error {
	return fmt.Errorf("%w: %s has %d values, expected %d", ErrLengthMismatch, what, got, want)
}

func NewInsufficientSampleError(what string, min, got int) error {
	return fmt.Errorf("%w: %s needs n >= %d, got %d", ErrInsufficientSample, what, min, got)
}

func NewMissingVariableError(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingVariable, name)
}

func NewBackendError(backend string, err error) error {
	return fmt.Errorf("%w (%s): %v", ErrBackendUnavailable, backend, err)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsBackendError(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
