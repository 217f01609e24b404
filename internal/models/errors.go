package models

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or out-of-range input. It is rejected
// before any state change and surfaced as a client fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a read against a resource that was never ingested.
type NotFoundError struct {
	ResourceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found", e.ResourceID)
}

// NewNotFoundError constructs a NotFoundError for the given resource.
func NewNotFoundError(resourceID string) error {
	return &NotFoundError{ResourceID: resourceID}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
