package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Merge folds one patient record into another: every visit of the
// source is reassigned to the target, then the source is soft-deleted
// so its reference number stays reserved. Both steps run in a single
// transaction. Returns how many visits were moved.
//
// Demographic fields are never merged; the target record is the
// surviving truth and the operator edits it separately if needed.
func (r *SQLiteRepository) Merge(ctx context.Context, sourceID, targetID string) (int, error) {
	if sourceID == targetID {
		return 0, ErrMergeSelf
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	for _, id := range []string{targetID, sourceID} {
		var one int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM patients WHERE id = ? AND deleted_at IS NULL", id,
		).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, ErrNotFound
			}
			return 0, fmt.Errorf("checking patient: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE visits SET patient_id = ? WHERE patient_id = ?",
		targetID, sourceID,
	)
	if err != nil {
		return 0, fmt.Errorf("reassigning visits: %w", err)
	}
	moved, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite

	now := time.Now().UTC().Truncate(time.Second)
	if _, err := tx.ExecContext(ctx,
		"UPDATE patients SET deleted_at = ?, updated_at = ? WHERE id = ?",
		formatTime(now), formatTime(now), sourceID,
	); err != nil {
		return 0, fmt.Errorf("retiring source patient: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing merge: %w", err)
	}
	return int(moved), nil
}
