package patient

import (
	"errors"
	"fmt"
)

// Domain errors for the patient package, checked with errors.Is().
var (
	// ErrNotFound is returned when a patient ID or reference number does
	// not exist (or the record is deleted).
	ErrNotFound = errors.New("patient: not found")

	// ErrInvalid is returned when patient validation fails. The concrete
	// error is a *ValidationError carrying the offending field.
	ErrInvalid = errors.New("patient: invalid")

	// ErrReferenceTaken is returned when an explicitly requested reference
	// number is already assigned.
	ErrReferenceTaken = errors.New("patient: reference number already in use")

	// ErrMergeSelf is returned when a merge names the same patient as
	// both source and target.
	ErrMergeSelf = errors.New("patient: cannot merge a patient into itself")
)

// ValidationError reports which field failed validation. It unwraps to
// ErrInvalid so callers can match broadly or extract the field to re-prompt.
// The reason never contains the submitted value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("patient: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}
