package clinic

import (
	"context"
	"fmt"
	"os"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/stats"
)

// MergeStats summarises a store-to-store merge for display to the
// operator.
type MergeStats struct {
	PatientsAdded   int
	PatientsSkipped int
	VisitsAdded     int
	VisitsSkipped   int
}

// MergePatients folds a duplicate patient record into the surviving
// one. Visits move wholesale, so day and month buckets are unchanged;
// only the active-patient total goes stale.
func (s *Store) MergePatients(ctx context.Context, sourceID, targetID string) (int, error) {
	moved, err := s.patients.Merge(ctx, sourceID, targetID)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(stats.KeyTotalPatients)
	s.logger.Info("patients merged",
		"source_id", sourceID, "target_id", targetID, "visits_moved", moved)
	return moved, nil
}

// MergeFrom imports patients and visits from another store file, such
// as a backup taken on a second machine. Patients are matched by
// reference number: a known reference means the same person, so the
// record is skipped and its visits land on the existing patient.
// Visits are deduplicated by patient, date and time. The whole import
// is one transaction; a failure leaves the store untouched.
//
// The source file must carry the same schema version as this store.
// Older backups should be opened once with current code (which
// migrates them) before merging.
func (s *Store) MergeFrom(ctx context.Context, sourcePath string) (*MergeStats, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, fmt.Errorf("clinic: merge source: %w", err)
	}

	version, err := s.db.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	// ATTACH is per-connection state, so the whole merge is pinned to
	// one connection and the source is detached before the connection
	// goes back to the pool.
	conn, err := s.db.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("clinic: acquiring connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck // returning the conn to the pool

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS src", sourcePath); err != nil {
		return nil, fmt.Errorf("clinic: attaching merge source: %w", err)
	}
	defer conn.ExecContext(context.WithoutCancel(ctx), "DETACH DATABASE src") //nolint:errcheck // detach failure only wastes the pooled conn

	var srcVersion int
	if err := conn.QueryRowContext(ctx,
		"SELECT version FROM src.schema_version",
	).Scan(&srcVersion); err != nil {
		return nil, fmt.Errorf("clinic: source is not a clinic store: %w", err)
	}
	if srcVersion != version {
		return nil, fmt.Errorf("clinic: source schema version %d does not match %d", srcVersion, version)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("clinic: starting merge: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	result := &MergeStats{}

	var srcPatients int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM src.patients WHERE deleted_at IS NULL",
	).Scan(&srcPatients); err != nil {
		return nil, fmt.Errorf("clinic: counting source patients: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO patients (id, reference_number, last_name, first_name, middle_name,
			date_of_birth, sex, civil_status, occupation, parents, parent_contact, school,
			contact_number, address, notes, created_at, updated_at, deleted_at)
		 SELECT sp.id, sp.reference_number, sp.last_name, sp.first_name, sp.middle_name,
			sp.date_of_birth, sp.sex, sp.civil_status, sp.occupation, sp.parents,
			sp.parent_contact, sp.school, sp.contact_number, sp.address, sp.notes,
			sp.created_at, sp.updated_at, NULL
		 FROM src.patients sp
		 WHERE sp.deleted_at IS NULL
		   AND sp.reference_number NOT IN (SELECT reference_number FROM patients)
		   AND sp.id NOT IN (SELECT id FROM patients)`,
	)
	if err != nil {
		return nil, fmt.Errorf("clinic: merging patients: %w", err)
	}
	added, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	result.PatientsAdded = int(added)
	result.PatientsSkipped = srcPatients - result.PatientsAdded

	var srcVisits int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM src.visits sv
		 JOIN src.patients sp ON sp.id = sv.patient_id AND sp.deleted_at IS NULL`,
	).Scan(&srcVisits); err != nil {
		return nil, fmt.Errorf("clinic: counting source visits: %w", err)
	}

	// Reference number is the join key between the two stores; after
	// the patient pass every active source reference exists here.
	res, err = tx.ExecContext(ctx,
		`INSERT INTO visits (id, patient_id, visit_date, visit_time, weight_kg, height_cm,
			blood_pressure, temperature_c, notes, visit_type, created_at, modified_at)
		 SELECT sv.id, mp.id, sv.visit_date, sv.visit_time, sv.weight_kg, sv.height_cm,
			sv.blood_pressure, sv.temperature_c, sv.notes, sv.visit_type,
			sv.created_at, sv.modified_at
		 FROM src.visits sv
		 JOIN src.patients sp ON sp.id = sv.patient_id AND sp.deleted_at IS NULL
		 JOIN patients mp ON mp.reference_number = sp.reference_number
		 WHERE sv.id NOT IN (SELECT id FROM visits)
		   AND NOT EXISTS (
			SELECT 1 FROM visits v
			WHERE v.patient_id = mp.id
			  AND v.visit_date = sv.visit_date
			  AND COALESCE(v.visit_time, '') = COALESCE(sv.visit_time, '')
		 )`,
	)
	if err != nil {
		return nil, fmt.Errorf("clinic: merging visits: %w", err)
	}
	added, _ = res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	result.VisitsAdded = int(added)
	result.VisitsSkipped = srcVisits - result.VisitsAdded

	var mergedDates []string
	if result.VisitsAdded > 0 {
		rows, err := tx.QueryContext(ctx,
			`SELECT DISTINCT sv.visit_date FROM src.visits sv
			 JOIN src.patients sp ON sp.id = sv.patient_id AND sp.deleted_at IS NULL`,
		)
		if err != nil {
			return nil, fmt.Errorf("clinic: listing merged dates: %w", err)
		}
		for rows.Next() {
			var d string
			if err := rows.Scan(&d); err != nil {
				rows.Close()
				return nil, fmt.Errorf("clinic: scanning merged date: %w", err)
			}
			mergedDates = append(mergedDates, d)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("clinic: iterating merged dates: %w", err)
		}
		rows.Close()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("clinic: committing merge: %w", err)
	}

	var keys []string
	if result.PatientsAdded > 0 {
		keys = append(keys, stats.KeyTotalPatients)
	}
	if result.VisitsAdded > 0 {
		keys = append(keys, stats.KeyTotalVisits)
		for _, date := range mergedDates {
			keys = append(keys, visitBuckets(date)...)
		}
	}
	s.cache.Invalidate(keys...)

	s.logger.Info("store merged",
		"patients_added", result.PatientsAdded, "patients_skipped", result.PatientsSkipped,
		"visits_added", result.VisitsAdded, "visits_skipped", result.VisitsSkipped)
	return result, nil
}
