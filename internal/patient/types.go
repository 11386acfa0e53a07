package patient

import (
	"fmt"
	"strings"
	"time"
)

// Sex is the recorded sex of a patient.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"

	// SexUnknown is stored when the paper record omits the field.
	SexUnknown Sex = ""
)

// IsValidSex reports whether s is a recognised sex value.
func IsValidSex(s Sex) bool {
	switch s {
	case SexMale, SexFemale, SexUnknown:
		return true
	}
	return false
}

// Patient is a registered clinic patient.
//
// ReferenceNumber is the human-presentable identifier written on the
// physical folder. It is assigned once at creation, never changes, and is
// never reused — even after the patient record is deleted.
type Patient struct {
	ID              string `json:"id"`
	ReferenceNumber int    `json:"reference_number"`
	LastName        string `json:"last_name"`
	FirstName       string `json:"first_name"`
	MiddleName      string `json:"middle_name,omitempty"`

	// DateOfBirth is YYYY-MM-DD, empty when unknown.
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Sex         Sex    `json:"sex,omitempty"`

	CivilStatus   string `json:"civil_status,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	Parents       string `json:"parents,omitempty"`
	ParentContact string `json:"parent_contact,omitempty"`
	School        string `json:"school,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
	Address       string `json:"address,omitempty"`
	Notes         string `json:"notes,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// FullName returns "Last, First Middle" for listings.
func (p *Patient) FullName() string {
	name := p.LastName + ", " + p.FirstName
	if p.MiddleName != "" {
		name += " " + p.MiddleName
	}
	return name
}

// referenceDigits is the displayed width of a reference number.
const referenceDigits = 6

// FormatReferenceNumber renders a reference number in the 00-00-00 form
// used on folders and in the interface. Numbers wider than six digits are
// shown unpadded.
func FormatReferenceNumber(ref int) string {
	if ref <= 0 {
		return "—"
	}
	s := fmt.Sprintf("%0*d", referenceDigits, ref)
	if len(s) != referenceDigits {
		return s
	}
	return s[:2] + "-" + s[2:4] + "-" + s[4:]
}

// ParseReferenceNumber accepts "00-00-07", "000007", or "7".
func ParseReferenceNumber(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	if s == "" {
		return 0, false
	}
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n < 1 {
		return 0, false
	}
	return n, true
}
