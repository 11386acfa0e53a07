// Package patient owns the Patient entity: validation, persistence, and
// the reference-number sequence.
//
// Reference numbers are the clinic's folder identifiers (displayed as
// 00-00-01). They are assigned monotonically inside the insert transaction
// and are never reused: deleting a patient soft-deletes the row so the
// number stays reserved against historical visit records.
//
// The delete policy is cascade — removing a patient removes their visits
// in the same transaction. See DESIGN.md for the rationale.
package patient
