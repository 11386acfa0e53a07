package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for patient persistence.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	GetByReference(ctx context.Context, ref int) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) (visitDates []string, err error)
	Merge(ctx context.Context, sourceID, targetID string) (visitsMoved int, err error)
	List(ctx context.Context, page, pageSize int) ([]Patient, int, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed patient repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// patientColumns is the canonical select list, kept in scan order.
const patientColumns = `id, reference_number, last_name, first_name, middle_name,
	date_of_birth, sex, civil_status, occupation, parents, parent_contact, school,
	contact_number, address, notes, created_at, updated_at, deleted_at`

// Columns is the canonical select list for queries built outside this
// package (the search engine). Rows selected with it scan via ScanRow.
const Columns = patientColumns

// RowScanner matches the Scan method shared by sql.Row and sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanRow scans one row selected with Columns into a Patient.
func ScanRow(s RowScanner) (*Patient, error) {
	return scanPatientFrom(s)
}

// Create inserts a new patient. The ID is generated if empty.
//
// The reference number is reserved inside the insert transaction: the next
// value is read from the same table the insert writes to, so interleaved
// creations can never observe the same "next" value. Requesting an explicit
// ReferenceNumber that is already assigned fails with ErrReferenceTaken.
// Soft-deleted patients keep their rows, so their numbers stay reserved.
func (r *SQLiteRepository) Create(ctx context.Context, p *Patient) error {
	if err := Validate(p); err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = "pat-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if p.ReferenceNumber == 0 {
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(reference_number), 0) + 1 FROM patients",
		).Scan(&p.ReferenceNumber); err != nil {
			return fmt.Errorf("reserving reference number: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO patients (id, reference_number, last_name, first_name, middle_name,
			date_of_birth, sex, civil_status, occupation, parents, parent_contact, school,
			contact_number, address, notes, created_at, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		p.ID, p.ReferenceNumber, p.LastName, p.FirstName, nullString(p.MiddleName),
		nullString(p.DateOfBirth), nullString(string(p.Sex)), nullString(p.CivilStatus),
		nullString(p.Occupation), nullString(p.Parents), nullString(p.ParentContact),
		nullString(p.School), nullString(p.ContactNumber), nullString(p.Address),
		nullString(p.Notes), formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReferenceTaken
		}
		return fmt.Errorf("creating patient: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing patient: %w", err)
	}
	return nil
}

// GetByID retrieves a patient by internal ID. Deleted patients report ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	return r.getPatient(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE id = ? AND deleted_at IS NULL", id)
}

// GetByReference retrieves a patient by reference number.
func (r *SQLiteRepository) GetByReference(ctx context.Context, ref int) (*Patient, error) {
	return r.getPatient(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE reference_number = ? AND deleted_at IS NULL", ref)
}

// Update modifies a patient's mutable fields. The reference number is
// immutable after assignment and is deliberately absent from the SET list.
func (r *SQLiteRepository) Update(ctx context.Context, p *Patient) error {
	if err := Validate(p); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx,
		`UPDATE patients SET last_name = ?, first_name = ?, middle_name = ?,
			date_of_birth = ?, sex = ?, civil_status = ?, occupation = ?, parents = ?,
			parent_contact = ?, school = ?, contact_number = ?, address = ?, notes = ?,
			updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		p.LastName, p.FirstName, nullString(p.MiddleName),
		nullString(p.DateOfBirth), nullString(string(p.Sex)), nullString(p.CivilStatus),
		nullString(p.Occupation), nullString(p.Parents), nullString(p.ParentContact),
		nullString(p.School), nullString(p.ContactNumber), nullString(p.Address),
		nullString(p.Notes), formatTime(now), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating patient: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}

	p.UpdatedAt = now
	return nil
}

// Delete removes a patient and cascades to their visits, all in one
// transaction. The patient row itself is soft-deleted so the reference
// number stays reserved forever. Returns the visit dates that were
// removed so the caller can invalidate the matching stat buckets.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	rows, err := tx.QueryContext(ctx, "SELECT visit_date FROM visits WHERE patient_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("listing patient visits: %w", err)
	}
	var visitDates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning visit date: %w", err)
		}
		visitDates = append(visitDates, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating visit dates: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM visits WHERE patient_id = ?", id); err != nil {
		return nil, fmt.Errorf("deleting patient visits: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	result, err := tx.ExecContext(ctx,
		"UPDATE patients SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		formatTime(now), formatTime(now), id,
	)
	if err != nil {
		return nil, fmt.Errorf("deleting patient: %w", err)
	}
	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return visitDates, nil
}

// List returns one page of patients ordered by last name, first name,
// plus the total count. Pages are 1-indexed.
func (r *SQLiteRepository) List(ctx context.Context, page, pageSize int) ([]Patient, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+patientColumns+` FROM patients
		 WHERE deleted_at IS NULL
		 ORDER BY last_name, first_name
		 LIMIT ? OFFSET ?`,
		pageSize, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	patients := []Patient{}
	for rows.Next() {
		p, err := scanPatientFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating patients: %w", err)
	}

	return patients, total, nil
}

// Count returns the number of active (non-deleted) patients.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM patients WHERE deleted_at IS NULL",
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting patients: %w", err)
	}
	return count, nil
}

// getPatient executes a query and scans a single patient result.
func (r *SQLiteRepository) getPatient(ctx context.Context, query string, args ...any) (*Patient, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	return scanPatientFrom(row)
}

// scanner is an interface over sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanPatientFrom scans a patient from any scanner (Row or Rows).
func scanPatientFrom(s scanner) (*Patient, error) {
	var p Patient
	var middleName, dob, sex, civilStatus, occupation, parents sql.NullString
	var parentContact, school, contactNumber, address, notes sql.NullString
	var createdAt, updatedAt string
	var deletedAt sql.NullString

	err := s.Scan(&p.ID, &p.ReferenceNumber, &p.LastName, &p.FirstName, &middleName,
		&dob, &sex, &civilStatus, &occupation, &parents, &parentContact, &school,
		&contactNumber, &address, &notes, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning patient: %w", err)
	}

	p.MiddleName = middleName.String
	p.DateOfBirth = dob.String
	p.Sex = Sex(sex.String)
	p.CivilStatus = civilStatus.String
	p.Occupation = occupation.String
	p.Parents = parents.String
	p.ParentContact = parentContact.String
	p.School = school.String
	p.ContactNumber = contactNumber.String
	p.Address = address.String
	p.Notes = notes.String

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, deletedAt.String) //nolint:errcheck // format is controlled
		p.DeletedAt = &t
	}

	return &p, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
