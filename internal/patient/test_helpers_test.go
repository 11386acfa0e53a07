package patient

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/JgvJalandoni/geneva-clinic-core/migrations"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/database"
)

// testDB creates a temporary store with the full migrated schema.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "clinic.db"),
		PoolSize:    2,
		BusyTimeout: 5,
		Durability:  config.DurabilityFull,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	return db.DB
}

// validPatient returns a patient that passes validation.
func validPatient() *Patient {
	return &Patient{
		LastName:    "Santos",
		FirstName:   "Maria",
		DateOfBirth: "1990-05-10",
		Sex:         SexFemale,
		Address:     "Quezon City",
	}
}
