package visit

import (
	"errors"
	"fmt"
)

// Domain errors for the visit package, checked with errors.Is().
var (
	// ErrNotFound is returned when a visit ID does not exist.
	ErrNotFound = errors.New("visit: not found")

	// ErrInvalid is returned when visit validation fails. The concrete
	// error is a *ValidationError carrying the offending field.
	ErrInvalid = errors.New("visit: invalid")

	// ErrPatientMissing is returned when the referenced patient does not
	// exist or has been deleted.
	ErrPatientMissing = errors.New("visit: referenced patient does not exist")
)

// ValidationError reports which field failed validation. It unwraps to
// ErrInvalid. The reason never contains the submitted value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("visit: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}
