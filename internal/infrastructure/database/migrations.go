package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MigrationsFS should be set by the migrations package to embed the
// migration files into the binary.
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.MigrationsFS = migrationsFS
//	}
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing migration
// files. "." if files are at the root of the embedded filesystem.
var MigrationsDir = "migrations"

// Migration is a single ordered schema transition step.
// Filenames follow NNNN_description.sql, e.g. 0002_patient_soft_delete.sql.
type Migration struct {
	// Version is the integer version this step migrates the store TO.
	// Steps are contiguous from 1; step N requires the store at N-1.
	Version int

	// Name is the human-readable step name from the filename.
	Name string

	// SQL is the statement batch applied by this step.
	SQL string
}

// SchemaVersion returns the store's current schema version.
// A fresh file (no schema_version table yet) reports version 0.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking schema version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// Migrate brings the store up to the current schema version.
//
// Each pending step v -> v+1 runs in a single transaction that applies the
// step SQL and updates the schema_version row, so a crash mid-step leaves
// the store at v, unchanged and safe to retry on next launch. Steps are
// strictly ordered and never skipped.
//
// A store already at the latest version performs zero schema writes.
// A store NEWER than the latest known version fails with
// ErrIncompatibleSchema: data written by a later build is never downgraded.
func (db *DB) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("%w: loading migrations: %v", ErrMigrationFailed, err)
	}
	if len(migrations) == 0 {
		return nil
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	latest := migrations[len(migrations)-1].Version
	if current > latest {
		return fmt.Errorf("%w: store is at version %d, this build supports up to %d",
			ErrIncompatibleSchema, current, latest)
	}
	if current == latest {
		return nil
	}

	if current == 0 {
		if err := db.createVersionTable(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if m.Version != current+1 {
			return fmt.Errorf("%w: step %d (%s) requires version %d, store is at %d",
				ErrMigrationFailed, m.Version, m.Name, m.Version-1, current)
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrMigrationFailed, m.Version, m.Name, err)
		}
		current = m.Version
	}

	return nil
}

// createVersionTable initializes the single-row schema_version table at 0.
func (db *DB) createVersionTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var rows int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		return fmt.Errorf("checking schema_version row: %w", err)
	}
	if rows == 0 {
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (0)"); err != nil {
			return fmt.Errorf("seeding schema_version row: %w", err)
		}
	}
	return nil
}

// applyMigration applies one step and its version bump in one transaction.
func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	res, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", m.Version)
	if err != nil {
		return fmt.Errorf("updating schema version: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 { //nolint:errcheck // always succeeds on SQLite
		return fmt.Errorf("schema_version row missing")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// loadMigrations loads, parses, and orders the embedded migration files,
// verifying the version sequence is contiguous from 1.
func loadMigrations() ([]Migration, error) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil // no embedded migrations (bare DB, tests)
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil // directory absent means nothing to apply
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		sqlBytes, err := fs.ReadFile(MigrationsFS, filepath.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			SQL:     string(sqlBytes),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i, m := range migrations {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration versions must be contiguous from 1; found %d at position %d", m.Version, i+1)
		}
	}

	return migrations, nil
}

// parseMigrationFilename extracts the version and name from NNNN_description.sql.
func parseMigrationFilename(filename string) (version int, name string, ok bool) {
	if !strings.HasSuffix(filename, ".sql") {
		return 0, "", false
	}
	base := strings.TrimSuffix(filename, ".sql")

	idx := strings.Index(base, "_")
	if idx <= 0 {
		return 0, "", false
	}

	version, err := strconv.Atoi(base[:idx])
	if err != nil || version < 1 {
		return 0, "", false
	}

	return version, base[idx+1:], true
}
