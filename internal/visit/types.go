package visit

import "time"

// Type distinguishes how a visit entered the system.
type Type string

const (
	// TypeNew is a live consultation recorded on the day it happened.
	TypeNew Type = "new"

	// TypeEncode is a historical paper record back-filled during an
	// encoding session.
	TypeEncode Type = "encode"
)

// IsValidType reports whether t is a recognised visit type.
func IsValidType(t Type) bool {
	return t == TypeNew || t == TypeEncode
}

// Visit is a single consultation. It references its patient but does not
// own it; a visit cannot exist without the referenced patient.
//
// Vital signs are pointers because any of them may be absent on the paper
// record being encoded.
type Visit struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`

	// VisitDate is YYYY-MM-DD; VisitTime is HH:MM:SS, empty when unknown.
	VisitDate string `json:"visit_date"`
	VisitTime string `json:"visit_time,omitempty"`

	WeightKg      *float64 `json:"weight_kg,omitempty"`
	HeightCm      *float64 `json:"height_cm,omitempty"`
	BloodPressure string   `json:"blood_pressure,omitempty"`
	TemperatureC  *float64 `json:"temperature_c,omitempty"`

	Notes string `json:"notes,omitempty"`
	Type  Type   `json:"visit_type"`

	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// Detail is a visit joined with identifying patient fields, used for day
// views and report exports.
type Detail struct {
	Visit
	ReferenceNumber int    `json:"reference_number"`
	PatientName     string `json:"patient_name"` // "Last, First Middle"
}

// PatientStats summarises a patient's visit history.
type PatientStats struct {
	TotalVisits int    `json:"total_visits"`
	FirstVisit  string `json:"first_visit,omitempty"` // YYYY-MM-DD
	LastVisit   string `json:"last_visit,omitempty"`  // YYYY-MM-DD
}
