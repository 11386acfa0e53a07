package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for account persistence.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed account repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new account. The ID is generated if empty and the
// role defaults to admin.
func (r *SQLiteRepository) Create(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = "acc-" + uuid.NewString()[:8]
	}
	if account.Role == "" {
		account.Role = RoleAdmin
	}

	now := time.Now().UTC().Format(time.RFC3339)
	account.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Username, account.PasswordHash, string(account.Role), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its unique ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.getAccount(ctx,
		"SELECT id, username, password_hash, role, created_at FROM accounts WHERE id = ?", id)
}

// GetByUsername retrieves an account by its username.
func (r *SQLiteRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.getAccount(ctx,
		"SELECT id, username, password_hash, role, created_at FROM accounts WHERE username = ?", username)
}

// getAccount executes a query and scans a single account result.
func (r *SQLiteRepository) getAccount(ctx context.Context, query string, args ...any) (*Account, error) {
	row := r.db.QueryRowContext(ctx, query, args...)

	var a Account
	var role, createdAt string
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.Role = Role(role)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &a, nil
}

// UpdatePassword changes an account's password hash.
func (r *SQLiteRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET password_hash = ? WHERE id = ?",
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account. The last account cannot be removed; the
// application must always have a way to log in.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastAccount
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of accounts.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
