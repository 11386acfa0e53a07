package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for visit persistence.
type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id string) (*Visit, error)
	Update(ctx context.Context, v *Visit) (oldDate string, err error)
	Delete(ctx context.Context, id string) (visitDate string, err error)
	ListByPatient(ctx context.Context, patientID string, page, pageSize int, from, to string) ([]Visit, int, error)
	ListDetailRange(ctx context.Context, from, to string, limit, offset int) ([]Detail, error)
	Count(ctx context.Context) (int, error)
	CountOnDate(ctx context.Context, date string) (int, error)
	CountInMonth(ctx context.Context, month string) (int, error)
	PatientStats(ctx context.Context, patientID string) (*PatientStats, error)
	LastEncodedDate(ctx context.Context) (string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed visit repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const visitColumns = `id, patient_id, visit_date, visit_time, weight_kg, height_cm,
	blood_pressure, temperature_c, notes, visit_type, created_at, modified_at`

// Create inserts a new visit. The ID is generated if empty; Type defaults
// to TypeNew.
//
// The referenced patient is checked inside the insert transaction so a
// concurrent patient delete cannot produce an orphan row; a missing or
// deleted patient fails with ErrPatientMissing.
func (r *SQLiteRepository) Create(ctx context.Context, v *Visit) error {
	if err := Validate(v); err != nil {
		return err
	}

	if v.ID == "" {
		v.ID = "vis-" + uuid.NewString()[:8]
	}
	if v.Type == "" {
		v.Type = TypeNew
	}
	v.CreatedAt = time.Now().UTC().Truncate(time.Second)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM patients WHERE id = ? AND deleted_at IS NULL", v.PatientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking patient: %w", err)
	}
	if exists == 0 {
		return ErrPatientMissing
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO visits (id, patient_id, visit_date, visit_time, weight_kg, height_cm,
			blood_pressure, temperature_c, notes, visit_type, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		v.ID, v.PatientID, v.VisitDate, nullString(v.VisitTime),
		nullFloat(v.WeightKg), nullFloat(v.HeightCm),
		nullString(v.BloodPressure), nullFloat(v.TemperatureC),
		nullString(v.Notes), string(v.Type), formatTime(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing visit: %w", err)
	}
	return nil
}

// GetByID retrieves a visit by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Visit, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+visitColumns+" FROM visits WHERE id = ?", id)
	return scanVisitFrom(row)
}

// Update modifies a visit's fields (date, time, vitals, notes, type).
// The owning patient never changes through this path. Returns the visit date the row
// held before the update so the caller can invalidate both date buckets.
func (r *SQLiteRepository) Update(ctx context.Context, v *Visit) (string, error) {
	if err := Validate(v); err != nil {
		return "", err
	}

	now := time.Now().UTC().Truncate(time.Second)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var oldDate, oldType string
	err = tx.QueryRowContext(ctx, "SELECT visit_date, visit_type FROM visits WHERE id = ?", v.ID).Scan(&oldDate, &oldType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading visit: %w", err)
	}

	// An unset Type keeps what the row already has; encode visits must
	// not silently flip back to new.
	if v.Type == "" {
		v.Type = Type(oldType)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE visits SET visit_date = ?, visit_time = ?, weight_kg = ?, height_cm = ?,
			blood_pressure = ?, temperature_c = ?, notes = ?, visit_type = ?, modified_at = ?
		 WHERE id = ?`,
		v.VisitDate, nullString(v.VisitTime),
		nullFloat(v.WeightKg), nullFloat(v.HeightCm),
		nullString(v.BloodPressure), nullFloat(v.TemperatureC),
		nullString(v.Notes), string(v.Type), formatTime(now), v.ID,
	)
	if err != nil {
		return "", fmt.Errorf("updating visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing visit update: %w", err)
	}

	v.ModifiedAt = &now
	return oldDate, nil
}

// Delete removes a visit. Returns the visit date of the removed row for
// stat-bucket invalidation.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var date string
	err = tx.QueryRowContext(ctx, "SELECT visit_date FROM visits WHERE id = ?", id).Scan(&date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading visit: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id); err != nil {
		return "", fmt.Errorf("deleting visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing visit delete: %w", err)
	}
	return date, nil
}

// ListByPatient returns one page of a patient's visits, newest first, with
// optional inclusive date bounds (empty string means unbounded).
func (r *SQLiteRepository) ListByPatient(ctx context.Context, patientID string, page, pageSize int, from, to string) ([]Visit, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	cond := "WHERE patient_id = ?"
	args := []any{patientID}
	if from != "" {
		cond += " AND visit_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		cond += " AND visit_date <= ?"
		args = append(args, to)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM visits "+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting patient visits: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+visitColumns+" FROM visits "+cond+
			" ORDER BY visit_date DESC, visit_time DESC LIMIT ? OFFSET ?",
		append(args, pageSize, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing patient visits: %w", err)
	}
	defer rows.Close()

	visits := []Visit{}
	for rows.Next() {
		v, err := scanVisitFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		visits = append(visits, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating patient visits: %w", err)
	}

	return visits, total, nil
}

// ListDetailRange returns visits joined with patient identity for the
// inclusive date range, newest first. Used by day views and report exports;
// limit/offset let the caller stream large ranges page by page.
func (r *SQLiteRepository) ListDetailRange(ctx context.Context, from, to string, limit, offset int) ([]Detail, error) {
	cond := "WHERE 1=1"
	args := []any{}
	if from != "" {
		cond += " AND v.visit_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		cond += " AND v.visit_date <= ?"
		args = append(args, to)
	}
	if limit < 1 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT v.id, v.patient_id, v.visit_date, v.visit_time, v.weight_kg, v.height_cm,
		       v.blood_pressure, v.temperature_c, v.notes, v.visit_type, v.created_at, v.modified_at,
		       p.reference_number,
		       p.last_name || ', ' || p.first_name ||
		           CASE WHEN p.middle_name IS NOT NULL THEN ' ' || p.middle_name ELSE '' END
		FROM visits v
		JOIN patients p ON v.patient_id = p.id
		`+cond+`
		ORDER BY v.visit_date DESC, v.visit_time DESC
		LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing visit details: %w", err)
	}
	defer rows.Close()

	details := []Detail{}
	for rows.Next() {
		var d Detail
		var visitTime, bloodPressure, notes, modifiedAt sql.NullString
		var weight, height, temp sql.NullFloat64
		var visitType, createdAt string

		err := rows.Scan(&d.ID, &d.PatientID, &d.VisitDate, &visitTime, &weight, &height,
			&bloodPressure, &temp, &notes, &visitType, &createdAt, &modifiedAt,
			&d.ReferenceNumber, &d.PatientName)
		if err != nil {
			return nil, fmt.Errorf("scanning visit detail: %w", err)
		}

		d.VisitTime = visitTime.String
		d.BloodPressure = bloodPressure.String
		d.Notes = notes.String
		d.Type = Type(visitType)
		fillFloat(&d.WeightKg, weight)
		fillFloat(&d.HeightCm, height)
		fillFloat(&d.TemperatureC, temp)
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		if modifiedAt.Valid {
			t, _ := time.Parse(time.RFC3339, modifiedAt.String) //nolint:errcheck // format is controlled
			d.ModifiedAt = &t
		}

		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visit details: %w", err)
	}

	return details, nil
}

// Count returns the total number of visits.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting visits: %w", err)
	}
	return count, nil
}

// CountOnDate returns the number of visits on a YYYY-MM-DD date.
func (r *SQLiteRepository) CountOnDate(ctx context.Context, date string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM visits WHERE visit_date = ?", date,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting visits on date: %w", err)
	}
	return count, nil
}

// CountInMonth returns the number of visits in a YYYY-MM month.
// visit_date is YYYY-MM-DD text, so the month is its first seven bytes;
// the range predicate keeps the date index usable.
func (r *SQLiteRepository) CountInMonth(ctx context.Context, month string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM visits WHERE visit_date >= ? AND visit_date < ?",
		month+"-01", nextMonth(month)+"-01",
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting visits in month: %w", err)
	}
	return count, nil
}

// PatientStats returns visit count and first/last visit dates for a patient.
func (r *SQLiteRepository) PatientStats(ctx context.Context, patientID string) (*PatientStats, error) {
	var stats PatientStats
	var first, last sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(visit_date), MAX(visit_date)
		FROM visits WHERE patient_id = ?`,
		patientID,
	).Scan(&stats.TotalVisits, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("reading patient stats: %w", err)
	}
	stats.FirstVisit = first.String
	stats.LastVisit = last.String
	return &stats, nil
}

// LastEncodedDate returns the visit date of the most recently created
// encode-type visit, or "" if none exist. Encoding sessions use this to
// resume where the last one stopped.
func (r *SQLiteRepository) LastEncodedDate(ctx context.Context) (string, error) {
	var date string
	err := r.db.QueryRowContext(ctx,
		"SELECT visit_date FROM visits WHERE visit_type = 'encode' ORDER BY created_at DESC LIMIT 1",
	).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading last encoded date: %w", err)
	}
	return date, nil
}

// scanner is an interface over sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanVisitFrom scans a visit from any scanner (Row or Rows).
func scanVisitFrom(s scanner) (*Visit, error) {
	var v Visit
	var visitTime, bloodPressure, notes, modifiedAt sql.NullString
	var weight, height, temp sql.NullFloat64
	var visitType, createdAt string

	err := s.Scan(&v.ID, &v.PatientID, &v.VisitDate, &visitTime, &weight, &height,
		&bloodPressure, &temp, &notes, &visitType, &createdAt, &modifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning visit: %w", err)
	}

	v.VisitTime = visitTime.String
	v.BloodPressure = bloodPressure.String
	v.Notes = notes.String
	v.Type = Type(visitType)
	fillFloat(&v.WeightKg, weight)
	fillFloat(&v.HeightCm, height)
	fillFloat(&v.TemperatureC, temp)

	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	if modifiedAt.Valid {
		t, _ := time.Parse(time.RFC3339, modifiedAt.String) //nolint:errcheck // format is controlled
		v.ModifiedAt = &t
	}

	return &v, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fillFloat(dst **float64, src sql.NullFloat64) {
	if src.Valid {
		v := src.Float64
		*dst = &v
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// nextMonth returns the YYYY-MM month following the given one.
func nextMonth(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return t.AddDate(0, 1, 0).Format("2006-01")
}
