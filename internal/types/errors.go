// README: Validation error shared by every module boundary.
package types

import "errors"

// ErrValidation is matched by every *ValidationError through errors.Is.
var ErrValidation = errors.New("validation error")

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
