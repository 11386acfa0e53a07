package patient

import (
	"strings"
	"time"
)

// Validation constants.
const (
	maxNameLength  = 100
	maxFieldLength = 500
	maxNotesLength = 4000
	dateLayout     = "2006-01-02"
)

// Validate checks a patient record before it is written.
// Returns a *ValidationError naming the first offending field.
func Validate(p *Patient) error {
	if p == nil {
		return &ValidationError{Field: "patient", Reason: "record is required"}
	}

	if strings.TrimSpace(p.LastName) == "" {
		return &ValidationError{Field: "last_name", Reason: "must not be empty"}
	}
	if len(p.LastName) > maxNameLength {
		return &ValidationError{Field: "last_name", Reason: "too long"}
	}
	if strings.TrimSpace(p.FirstName) == "" {
		return &ValidationError{Field: "first_name", Reason: "must not be empty"}
	}
	if len(p.FirstName) > maxNameLength {
		return &ValidationError{Field: "first_name", Reason: "too long"}
	}
	if len(p.MiddleName) > maxNameLength {
		return &ValidationError{Field: "middle_name", Reason: "too long"}
	}

	if p.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, p.DateOfBirth)
		if err != nil {
			return &ValidationError{Field: "date_of_birth", Reason: "must be YYYY-MM-DD"}
		}
		if dob.After(time.Now().UTC()) {
			return &ValidationError{Field: "date_of_birth", Reason: "must not be in the future"}
		}
	}

	if !IsValidSex(p.Sex) {
		return &ValidationError{Field: "sex", Reason: "must be M or F"}
	}

	if p.ReferenceNumber < 0 {
		return &ValidationError{Field: "reference_number", Reason: "must be positive"}
	}

	for field, value := range map[string]string{
		"civil_status":   p.CivilStatus,
		"occupation":     p.Occupation,
		"parents":        p.Parents,
		"parent_contact": p.ParentContact,
		"school":         p.School,
		"contact_number": p.ContactNumber,
		"address":        p.Address,
	} {
		if len(value) > maxFieldLength {
			return &ValidationError{Field: field, Reason: "too long"}
		}
	}

	if len(p.Notes) > maxNotesLength {
		return &ValidationError{Field: "notes", Reason: "too long"}
	}

	return nil
}
