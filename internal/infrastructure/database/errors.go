package database

import "errors"

// Storage-layer errors. Checked with errors.Is().
//
// All three are fatal at startup: the application must report them and
// halt rather than degrade to an unusable half-open state.
var (
	// ErrStorageUnavailable is returned when the database file cannot be
	// opened: missing directory, bad permissions, or a corrupt file.
	ErrStorageUnavailable = errors.New("database: storage unavailable")

	// ErrIncompatibleSchema is returned when the store's schema version is
	// newer than this build understands. Data is never downgraded.
	ErrIncompatibleSchema = errors.New("database: incompatible schema version")

	// ErrMigrationFailed is returned when a migration step fails. The step
	// is rolled back; the store remains at the previous version.
	ErrMigrationFailed = errors.New("database: migration failed")
)
