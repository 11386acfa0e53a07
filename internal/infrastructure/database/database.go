package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds for the busy timeout pragma.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// DB wraps a sql.DB pool over the single clinic database file.
// It provides migration support, backups, and lifecycle management.
type DB struct {
	*sql.DB
	path string
}

// Config contains database configuration options.
// These map to the storage section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory is created if it doesn't exist.
	Path string

	// PoolSize bounds the connection pool. The pool avoids reopen
	// overhead; it does not provide multi-client concurrency.
	PoolSize int

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// Durability selects the synchronous commit mode.
	Durability config.DurabilityMode
}

// Open creates the connection pool with WAL journaling and the configured
// synchronous mode, then verifies the file is a usable database.
//
// Failures are wrapped in ErrStorageUnavailable: a missing directory that
// cannot be created, a permission problem, or a file that is not a SQLite
// database. Callers must surface the condition to the operator, not retry.
func Open(cfg Config) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %v", ErrStorageUnavailable, err)
	}

	synchronous := "FULL"
	if cfg.Durability == config.DurabilityNormal {
		synchronous = "NORMAL"
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=%s",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
		synchronous,
	)

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStorageUnavailable, err)
	}

	// SQLite allows one writer; readers share via WAL. The busy timeout
	// covers writer contention within the pool.
	poolSize := cfg.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{
		DB:   sqlDB,
		path: cfg.Path,
	}

	// A ping alone can succeed on a corrupt file; SELECT forces SQLite to
	// read the header and reject non-database files.
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("%w: verifying database: %v", ErrStorageUnavailable, err)
	}

	// Owner read/write only. Ignore error: on first run the file may not
	// exist until the first write.
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck

	return db, nil
}

// Close closes the connection pool deterministically.
// Called on shutdown, including signal-driven shutdown.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics for diagnostics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// BackupTo writes a consistent point-in-time snapshot of the store to
// destination, replacing any existing file atomically.
//
// The snapshot uses VACUUM INTO, which SQLite serializes against write
// transactions, so the copy never contains a torn write. The output is
// written to a temporary sibling first and swapped in with an atomic
// rename, so an interrupted backup never leaves a partial file at the
// destination.
func (db *DB) BackupTo(ctx context.Context, destination string) error {
	if destination == "" {
		return fmt.Errorf("backup destination is required")
	}

	tmp := destination + ".tmp"
	// VACUUM INTO refuses to overwrite; clear any leftover from a
	// previously interrupted backup.
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing stale backup temp file: %w", err)
	}

	if _, err := db.DB.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("snapshotting database: %w", err)
	}

	if err := atomic.ReplaceFile(tmp, destination); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("moving backup into place: %w", err)
	}

	return nil
}

// BeginTx starts a transaction. Repository mutations always run inside a
// transaction so data and index updates commit or roll back together.
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // no-op if committed
//	// ... execute queries on tx ...
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
