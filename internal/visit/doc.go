// Package visit owns the Visit entity: validation of vital signs and
// persistence of consultation records.
//
// A visit references but does not own its patient; creating a visit
// verifies the patient exists inside the same transaction, and deleting a
// patient cascades to its visits (see the patient package).
package visit
