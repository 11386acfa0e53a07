package clinic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/JgvJalandoni/geneva-clinic-core/migrations"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/logging"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/search"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/stats"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/visit"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "clinic.db")

	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	store, err := Open(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int           { return &n }

// The full dashboard scenario: registration, a visit, and stat reads
// with precise invalidation throughout.
func TestStore_MariaSantosScenario(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	// The facade uses the wall clock for age filters, so the DOB is
	// anchored to today rather than a literal year.
	dob := time.Now().UTC().AddDate(-35, 0, 0).Format("2006-01-02")
	maria := &patient.Patient{
		LastName:    "Santos",
		FirstName:   "Maria",
		DateOfBirth: dob,
		Sex:         patient.SexFemale,
	}
	if err := store.CreatePatient(ctx, maria); err != nil {
		t.Fatalf("CreatePatient() error = %v", err)
	}
	if got := patient.FormatReferenceNumber(maria.ReferenceNumber); got != "00-00-01" {
		t.Errorf("reference = %q, want 00-00-01", got)
	}

	total, err := store.Stats(ctx, stats.KeyTotalPatients)
	if err != nil {
		t.Fatalf("Stats(total_patients) error = %v", err)
	}
	if total != 1 {
		t.Errorf("total_patients = %d, want 1", total)
	}
	patientRecomputes := store.StatRecomputes(stats.KeyTotalPatients)

	v := &visit.Visit{
		PatientID: maria.ID,
		VisitDate: "2024-01-15",
		WeightKg:  floatPtr(60),
	}
	if err := store.CreateVisit(ctx, v); err != nil {
		t.Fatalf("CreateVisit() error = %v", err)
	}

	totalVisits, err := store.Stats(ctx, stats.KeyTotalVisits)
	if err != nil {
		t.Fatalf("Stats(total_visits) error = %v", err)
	}
	if totalVisits != 1 {
		t.Errorf("total_visits = %d, want 1", totalVisits)
	}

	total, err = store.Stats(ctx, stats.KeyTotalPatients)
	if err != nil {
		t.Fatalf("Stats(total_patients) error = %v", err)
	}
	if total != 1 {
		t.Errorf("total_patients = %d, want 1 still", total)
	}
	if got := store.StatRecomputes(stats.KeyTotalPatients); got != patientRecomputes {
		t.Errorf("total_patients recomputed after a visit mutation: %d -> %d", patientRecomputes, got)
	}

	result, err := store.Search(ctx, search.Spec{AgeMin: intPtr(30), AgeMax: intPtr(40), Sex: patient.SexFemale})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Total != 1 || result.Patients[0].LastName != "Santos" {
		t.Errorf("age [30,40] F: total = %d, want Maria Santos", result.Total)
	}

	result, err = store.Search(ctx, search.Spec{AgeMin: intPtr(0), AgeMax: intPtr(10), Sex: patient.SexFemale})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Total != 0 {
		t.Errorf("age [0,10]: total = %d, want 0", result.Total)
	}
}

func TestStore_NoStaleStatAfterMutation(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	maria := &patient.Patient{LastName: "Santos", FirstName: "Maria"}
	if err := store.CreatePatient(ctx, maria); err != nil {
		t.Fatalf("CreatePatient() error = %v", err)
	}

	dayKey := stats.KeyVisitsOnDay("2024-01-15")
	monthKey := stats.KeyVisitsInMonth("2024-01")
	for _, key := range []string{stats.KeyTotalVisits, dayKey, monthKey} {
		n, err := store.Stats(ctx, key)
		if err != nil {
			t.Fatalf("Stats(%s) error = %v", key, err)
		}
		if n != 0 {
			t.Errorf("%s = %d, want 0", key, n)
		}
	}

	v := &visit.Visit{PatientID: maria.ID, VisitDate: "2024-01-15"}
	if err := store.CreateVisit(ctx, v); err != nil {
		t.Fatalf("CreateVisit() error = %v", err)
	}

	for _, key := range []string{stats.KeyTotalVisits, dayKey, monthKey} {
		n, err := store.Stats(ctx, key)
		if err != nil {
			t.Fatalf("Stats(%s) error = %v", key, err)
		}
		if n != 1 {
			t.Errorf("%s = %d immediately after mutation, want 1", key, n)
		}
	}

	otherDay := stats.KeyVisitsOnDay("2024-02-01")
	if _, err := store.Stats(ctx, otherDay); err != nil {
		t.Fatalf("Stats(%s) error = %v", otherDay, err)
	}
	before := store.StatRecomputes(otherDay)

	if err := store.DeleteVisit(ctx, v.ID); err != nil {
		t.Fatalf("DeleteVisit() error = %v", err)
	}
	n, err := store.Stats(ctx, dayKey)
	if err != nil {
		t.Fatalf("Stats(%s) error = %v", dayKey, err)
	}
	if n != 0 {
		t.Errorf("%s = %d after delete, want 0", dayKey, n)
	}
	if _, err := store.Stats(ctx, otherDay); err != nil {
		t.Fatalf("Stats(%s) error = %v", otherDay, err)
	}
	if got := store.StatRecomputes(otherDay); got != before {
		t.Errorf("unrelated day bucket recomputed: %d -> %d", before, got)
	}
}

func TestStore_UpdateVisitMovesBuckets(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	maria := &patient.Patient{LastName: "Santos", FirstName: "Maria"}
	if err := store.CreatePatient(ctx, maria); err != nil {
		t.Fatalf("CreatePatient() error = %v", err)
	}
	v := &visit.Visit{PatientID: maria.ID, VisitDate: "2024-01-15"}
	if err := store.CreateVisit(ctx, v); err != nil {
		t.Fatalf("CreateVisit() error = %v", err)
	}

	janKey := stats.KeyVisitsOnDay("2024-01-15")
	febKey := stats.KeyVisitsOnDay("2024-02-01")
	if n, _ := store.Stats(ctx, janKey); n != 1 {
		t.Fatalf("%s = %d, want 1", janKey, n)
	}
	if n, _ := store.Stats(ctx, febKey); n != 0 {
		t.Fatalf("%s = %d, want 0", febKey, n)
	}
	totalBefore := store.StatRecomputes(stats.KeyTotalVisits)

	v.VisitDate = "2024-02-01"
	if err := store.UpdateVisit(ctx, v); err != nil {
		t.Fatalf("UpdateVisit() error = %v", err)
	}

	if n, _ := store.Stats(ctx, janKey); n != 0 {
		t.Errorf("%s = %d after move, want 0", janKey, n)
	}
	if n, _ := store.Stats(ctx, febKey); n != 1 {
		t.Errorf("%s = %d after move, want 1", febKey, n)
	}

	// Moving a visit does not change how many there are.
	if _, err := store.Stats(ctx, stats.KeyTotalVisits); err != nil {
		t.Fatal(err)
	}
	if got := store.StatRecomputes(stats.KeyTotalVisits); got != totalBefore {
		t.Errorf("total_visits recomputed on a date move: %d -> %d", totalBefore, got)
	}
}

func TestStore_DeletePatientInvalidatesVisitBuckets(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	maria := &patient.Patient{LastName: "Santos", FirstName: "Maria"}
	if err := store.CreatePatient(ctx, maria); err != nil {
		t.Fatalf("CreatePatient() error = %v", err)
	}
	for _, date := range []string{"2024-01-15", "2024-02-01"} {
		if err := store.CreateVisit(ctx, &visit.Visit{PatientID: maria.ID, VisitDate: date}); err != nil {
			t.Fatalf("CreateVisit(%s) error = %v", date, err)
		}
	}

	keys := []string{
		stats.KeyTotalPatients, stats.KeyTotalVisits,
		stats.KeyVisitsOnDay("2024-01-15"), stats.KeyVisitsOnDay("2024-02-01"),
	}
	for _, key := range keys {
		if _, err := store.Stats(ctx, key); err != nil {
			t.Fatalf("Stats(%s) error = %v", key, err)
		}
	}

	if err := store.DeletePatient(ctx, maria.ID); err != nil {
		t.Fatalf("DeletePatient() error = %v", err)
	}

	for _, key := range keys {
		n, err := store.Stats(ctx, key)
		if err != nil {
			t.Fatalf("Stats(%s) error = %v", key, err)
		}
		if n != 0 {
			t.Errorf("%s = %d after patient delete, want 0", key, n)
		}
	}

	if _, err := store.GetPatient(ctx, maria.ID); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("GetPatient() error = %v, want ErrNotFound", err)
	}
}

func TestStore_UnknownStat(t *testing.T) {
	store := testStore(t)
	if _, err := store.Stats(context.Background(), "total_unicorns"); err == nil {
		t.Error("unknown stat should return an error")
	}
}

func TestStore_AccountsFlow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	seeded, err := store.SeedAdmin(ctx)
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if seeded == "" {
		t.Fatal("first seed should return a password")
	}
	if _, err := store.Authenticate(ctx, "admin", seeded); err != nil {
		t.Errorf("seeded admin should authenticate, got %v", err)
	}

	if err := store.ChangePassword(ctx, "admin", seeded, "a new passphrase"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := store.Authenticate(ctx, "admin", seeded); err == nil {
		t.Error("old seeded password should be rejected")
	}

	if _, err := store.CreateAccount(ctx, "assistant", "another passphrase", ""); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if _, err := store.Authenticate(ctx, "assistant", "another passphrase"); err != nil {
		t.Errorf("new account should authenticate, got %v", err)
	}
}

func TestStore_BackupTo(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	maria := &patient.Patient{LastName: "Santos", FirstName: "Maria"}
	if err := store.CreatePatient(ctx, maria); err != nil {
		t.Fatalf("CreatePatient() error = %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	if err := store.BackupTo(ctx, backupPath); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	cfg := config.Default()
	cfg.Storage.Path = backupPath
	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	restored, err := Open(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	got, err := restored.GetPatient(ctx, maria.ID)
	if err != nil {
		t.Fatalf("GetPatient() from backup error = %v", err)
	}
	if got.LastName != "Santos" {
		t.Errorf("LastName = %q", got.LastName)
	}
}

func TestStore_ExportsThroughFacade(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	maria := &patient.Patient{LastName: "Santos", FirstName: "Maria"}
	if err := store.CreatePatient(ctx, maria); err != nil {
		t.Fatalf("CreatePatient() error = %v", err)
	}
	if err := store.CreateVisit(ctx, &visit.Visit{PatientID: maria.ID, VisitDate: "2024-01-15"}); err != nil {
		t.Fatalf("CreateVisit() error = %v", err)
	}

	dir := t.TempDir()
	rows, err := store.ExportPatientsCSV(ctx, search.Spec{}, filepath.Join(dir, "patients.csv"))
	if err != nil {
		t.Fatalf("ExportPatientsCSV() error = %v", err)
	}
	if rows != 1 {
		t.Errorf("csv rows = %d, want 1", rows)
	}

	rows, err = store.ExportVisitsXLSX(ctx, "", "", filepath.Join(dir, "visits.xlsx"))
	if err != nil {
		t.Fatalf("ExportVisitsXLSX() error = %v", err)
	}
	if rows != 1 {
		t.Errorf("xlsx rows = %d, want 1", rows)
	}
}
