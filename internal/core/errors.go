package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrInvalidAmount       = errors.New("amount must be a positive number")
	ErrSpendOverflow       = errors.New("spend would exceed the maximum amount")
	ErrInvalidDate         = errors.New("date must be YYYY-MM-DD")
	ErrEmptyName           = errors.New("name is required")
	ErrEmptyConcept        = errors.New("concept is required")
	ErrEmptyProvider       = errors.New("provider is required")
	ErrTextTooLong         = errors.New("text too long")
	ErrInvalidStatus       = errors.New("unknown status")
	ErrInvalidExpenseType  = errors.New("unknown expense type")
	ErrInvalidIncomeSource = errors.New("unknown income source")
	ErrMissingReference    = errors.New("reference is required")
	ErrCategoryMismatch    = errors.New("category does not belong to event")
)

// ValidationError ties a validation failure to the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Invalid builds a ValidationError for callers outside this package.
func Invalid(field string, err error) error {
	return invalid(field, err)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFound wraps ErrNotFound with the missing entity and id.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}
