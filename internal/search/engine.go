package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
)

const defaultPageSize = 25

// Engine runs filtered, paged patient queries against the store.
type Engine struct {
	db *sql.DB

	// now supplies the reference date for age brackets. Overridable in
	// tests so age assertions do not rot.
	now func() time.Time
}

// NewEngine creates a search engine over the given store.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db, now: time.Now}
}

// Search executes the filter specification and returns one page of
// matches plus the exact total across all pages. Cancelling the context
// aborts the scan between rows; no cache or store state is touched.
func (e *Engine) Search(ctx context.Context, spec Spec) (*Result, error) {
	page := spec.Page
	if page < 1 {
		page = 1
	}
	pageSize := spec.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	today := e.now().UTC().Format(dateLayout)
	plan := buildPlan(spec, today)
	where := strings.Join(plan.conds, " AND ")

	var total int
	if err := e.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM patients WHERE "+where, plan.args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting matches: %w", err)
	}

	query := "SELECT " + patient.Columns + " FROM patients WHERE " + where +
		" ORDER BY " + plan.orderBy + " LIMIT ? OFFSET ?"
	args := append(append([]any{}, plan.args...), pageSize, (page-1)*pageSize)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching patients: %w", err)
	}
	defer rows.Close()

	patients := []patient.Patient{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := patient.ScanRow(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	return &Result{
		Patients: patients,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
