package visit

import (
	"time"
)

// Plausible-measurement bounds. Values outside these ranges are far more
// likely to be typos than clinical readings.
const (
	minWeightKg = 0.5
	maxWeightKg = 300

	minHeightCm = 30
	maxHeightCm = 250

	minTempC = 35
	maxTempC = 42

	maxBloodPressureLen = 20
	maxNotesLen         = 4000

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Validate checks a visit record before it is written.
// Returns a *ValidationError naming the first offending field.
func Validate(v *Visit) error {
	if v == nil {
		return &ValidationError{Field: "visit", Reason: "record is required"}
	}

	if v.PatientID == "" {
		return &ValidationError{Field: "patient_id", Reason: "must not be empty"}
	}

	if v.VisitDate == "" {
		return &ValidationError{Field: "visit_date", Reason: "must not be empty"}
	}
	if _, err := time.Parse(dateLayout, v.VisitDate); err != nil {
		return &ValidationError{Field: "visit_date", Reason: "must be YYYY-MM-DD"}
	}

	if v.VisitTime != "" {
		if _, err := time.Parse(timeLayout, v.VisitTime); err != nil {
			return &ValidationError{Field: "visit_time", Reason: "must be HH:MM:SS"}
		}
	}

	if v.WeightKg != nil && (*v.WeightKg < minWeightKg || *v.WeightKg > maxWeightKg) {
		return &ValidationError{Field: "weight_kg", Reason: "outside plausible range"}
	}
	if v.HeightCm != nil && (*v.HeightCm < minHeightCm || *v.HeightCm > maxHeightCm) {
		return &ValidationError{Field: "height_cm", Reason: "outside plausible range"}
	}
	if v.TemperatureC != nil && (*v.TemperatureC < minTempC || *v.TemperatureC > maxTempC) {
		return &ValidationError{Field: "temperature_c", Reason: "outside plausible range"}
	}

	if len(v.BloodPressure) > maxBloodPressureLen {
		return &ValidationError{Field: "blood_pressure", Reason: "too long"}
	}
	if len(v.Notes) > maxNotesLen {
		return &ValidationError{Field: "notes", Reason: "too long"}
	}

	if v.Type != "" && !IsValidType(v.Type) {
		return &ValidationError{Field: "visit_type", Reason: "must be new or encode"}
	}

	return nil
}
