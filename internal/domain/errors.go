package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any record is created.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotConfigured is returned when the evaluator backend has no credentials.
	ErrNotConfigured = errors.New("evaluator service not configured")
	// ErrInvalidTransition is returned when a state change would move backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMalformedEvaluation is returned when evaluator output does not match the contract.
	ErrMalformedEvaluation = errors.New("malformed evaluation")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }
