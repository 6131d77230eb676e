package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNegativeAmount    = errors.New("amount cannot be negative")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyLocation     = errors.New("empty location")
	ErrNameTooLong       = errors.New("name too long (max 100 characters)")
	ErrEditWindowClosed  = errors.New("entry can only be edited on the day it was logged or the day after")
	ErrInvalidColumnName = errors.New("invalid credit column name")
)

// ValidationError reports malformed input for a single field. It wraps one of
// the sentinel errors above so callers can match with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
