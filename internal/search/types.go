package search

import (
	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
)

// SortKey selects the result ordering.
type SortKey string

const (
	SortName        SortKey = "name"
	SortAge         SortKey = "age"
	SortRecentVisit SortKey = "recent_visit"
	SortRegistered  SortKey = "registered"
)

// Spec is a filter specification. Zero-valued fields are absent
// predicates; an entirely zero Spec lists everyone.
type Spec struct {
	// Query is free text: matched as a reference number when it parses
	// as one, otherwise as a name substring.
	Query string

	// NamePrefix matches the start of the last name.
	NamePrefix string

	// AlphaFrom/AlphaTo bound the last-name initial, inclusive ("A", "F").
	AlphaFrom string
	AlphaTo   string

	// AgeMin/AgeMax bound the age in completed years, inclusive.
	AgeMin *int
	AgeMax *int

	Sex patient.Sex

	// VisitFrom/VisitTo keep patients with at least one visit in the
	// inclusive date range (YYYY-MM-DD).
	VisitFrom string
	VisitTo   string

	// RegisteredFrom/RegisteredTo bound the registration date (YYYY-MM-DD).
	RegisteredFrom string
	RegisteredTo   string

	Sort     SortKey
	Page     int
	PageSize int
}

// Result is one page of matches plus the exact total across all pages.
type Result struct {
	Patients []patient.Patient
	Total    int
	Page     int
	PageSize int
}
