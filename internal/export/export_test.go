package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	_ "github.com/JgvJalandoni/geneva-clinic-core/migrations"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/database"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/search"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/visit"
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

func testExporter(db *sql.DB, pageSize int) *Exporter {
	return NewExporter(search.NewEngine(db), visit.NewRepository(db), pageSize)
}

func addPatient(t *testing.T, db *sql.DB, p *patient.Patient) *patient.Patient {
	t.Helper()
	if err := patient.NewRepository(db).Create(context.Background(), p); err != nil {
		t.Fatalf("creating patient: %v", err)
	}
	return p
}

func floatPtr(f float64) *float64 { return &f }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	return records
}

func TestExportPatientsCSV_RoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	maria := addPatient(t, db, &patient.Patient{
		LastName:      "Santos",
		FirstName:     "Maria",
		MiddleName:    "Reyes",
		DateOfBirth:   "1990-05-10",
		Sex:           patient.SexFemale,
		CivilStatus:   "married",
		Occupation:    "teacher",
		ContactNumber: "0917-555-0101",
		Address:       "12 Mabini St",
		Notes:         "allergic to penicillin, \"severe\"",
	})

	dest := filepath.Join(t.TempDir(), "patients.csv")
	rows, err := testExporter(db, 0).ExportPatientsCSV(ctx, search.Spec{}, dest)
	if err != nil {
		t.Fatalf("ExportPatientsCSV() error = %v", err)
	}
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}

	records := readCSV(t, dest)
	if len(records) != 2 {
		t.Fatalf("records = %d, want header + 1", len(records))
	}
	for i, want := range patientCSVHeader {
		if records[0][i] != want {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], want)
		}
	}

	row := records[1]
	want := []string{
		patient.FormatReferenceNumber(maria.ReferenceNumber),
		"Santos", "Maria", "Reyes", "1990-05-10", "F", "married", "teacher",
		"", "", "", "0917-555-0101", "12 Mabini St",
		"allergic to penicillin, \"severe\"",
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestExportPatientsCSV_StreamsPages(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, last := range []string{"Abad", "Bautista", "Cruz", "Reyes", "Santos"} {
		addPatient(t, db, &patient.Patient{LastName: last, FirstName: "Test"})
	}

	dest := filepath.Join(t.TempDir(), "patients.csv")
	rows, err := testExporter(db, 2).ExportPatientsCSV(ctx, search.Spec{}, dest)
	if err != nil {
		t.Fatalf("ExportPatientsCSV() error = %v", err)
	}
	if rows != 5 {
		t.Errorf("rows = %d, want 5", rows)
	}

	records := readCSV(t, dest)
	if len(records) != 6 {
		t.Fatalf("records = %d, want header + 5", len(records))
	}
	if records[1][1] != "Abad" || records[5][1] != "Santos" {
		t.Errorf("order: first = %q last = %q", records[1][1], records[5][1])
	}
}

func TestExportPatientsCSV_HonorsFilter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	addPatient(t, db, &patient.Patient{LastName: "Santos", FirstName: "Maria", Sex: patient.SexFemale})
	addPatient(t, db, &patient.Patient{LastName: "Cruz", FirstName: "Juan", Sex: patient.SexMale})

	dest := filepath.Join(t.TempDir(), "patients.csv")
	rows, err := testExporter(db, 0).ExportPatientsCSV(ctx, search.Spec{Sex: patient.SexFemale}, dest)
	if err != nil {
		t.Fatalf("ExportPatientsCSV() error = %v", err)
	}
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestExportPatientsCSV_OverwritesAtomically(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	addPatient(t, db, &patient.Patient{LastName: "Santos", FirstName: "Maria"})

	dest := filepath.Join(t.TempDir(), "patients.csv")
	if err := os.WriteFile(dest, []byte("stale content"), 0o600); err != nil {
		t.Fatalf("seeding stale file: %v", err)
	}

	if _, err := testExporter(db, 0).ExportPatientsCSV(ctx, search.Spec{}, dest); err != nil {
		t.Fatalf("ExportPatientsCSV() error = %v", err)
	}

	records := readCSV(t, dest)
	if len(records) != 2 {
		t.Errorf("records = %d, stale file should be replaced", len(records))
	}
}

func TestExportVisitsXLSX(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	maria := addPatient(t, db, &patient.Patient{LastName: "Santos", FirstName: "Maria"})
	visits := visit.NewRepository(db)
	for _, date := range []string{"2024-01-15", "2024-02-01", "2024-03-10"} {
		v := &visit.Visit{
			PatientID: maria.ID,
			VisitDate: date,
			WeightKg:  floatPtr(60),
		}
		if err := visits.Create(ctx, v); err != nil {
			t.Fatalf("creating visit: %v", err)
		}
	}

	dest := filepath.Join(t.TempDir(), "visits.xlsx")
	rows, err := testExporter(db, 2).ExportVisitsXLSX(ctx, "2024-01-01", "2024-02-28", dest)
	if err != nil {
		t.Fatalf("ExportVisitsXLSX() error = %v", err)
	}
	if rows != 2 {
		t.Errorf("rows = %d, want 2 in range", rows)
	}

	f, err := excelize.OpenFile(dest)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows(visitSheetName)
	if err != nil {
		t.Fatalf("reading sheet: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("sheet rows = %d, want header + 2", len(got))
	}
	if got[0][0] != "Reference" || got[0][1] != "Patient" {
		t.Errorf("header = %v", got[0])
	}
	// Newest first within the range.
	if got[1][2] != "2024-02-01" || got[2][2] != "2024-01-15" {
		t.Errorf("dates = %q, %q", got[1][2], got[2][2])
	}
	if got[1][1] != "Santos, Maria" {
		t.Errorf("patient = %q", got[1][1])
	}
}
