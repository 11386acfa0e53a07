package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/search"
)

const defaultExportPageSize = 200

// patientCSVHeader is the stable column order. Downstream spreadsheets
// key on these positions, so new columns go at the end only.
var patientCSVHeader = []string{
	"Reference", "Last Name", "First Name", "Middle Name",
	"DOB", "Sex", "Civil Status", "Occupation", "Parents", "Parent Contact",
	"School", "Contact", "Address", "Notes", "Registered",
}

// Exporter writes filtered record sets to files. All exports go through
// a temp file in the destination directory and an atomic rename, so a
// crash mid-export never leaves a torn file at the destination.
type Exporter struct {
	engine   *search.Engine
	visits   VisitLister
	pageSize int
}

// NewExporter creates an exporter. pageSize bounds how many records are
// held in memory at once; zero picks a default.
func NewExporter(engine *search.Engine, visits VisitLister, pageSize int) *Exporter {
	if pageSize < 1 {
		pageSize = defaultExportPageSize
	}
	return &Exporter{engine: engine, visits: visits, pageSize: pageSize}
}

// ExportPatientsCSV streams search results for spec into a CSV file at
// destPath. Returns the number of data rows written. The search's page
// settings are overridden; the whole result set is exported page by page.
func (e *Exporter) ExportPatientsCSV(ctx context.Context, spec search.Spec, destPath string) (int, error) {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".export-*.csv")
	if err != nil {
		return 0, fmt.Errorf("creating temp export file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone already on the success path
	defer tmp.Close()           //nolint:errcheck // double close is harmless

	w := csv.NewWriter(tmp)
	if err := w.Write(patientCSVHeader); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	rows := 0
	spec.PageSize = e.pageSize
	for page := 1; ; page++ {
		spec.Page = page
		result, err := e.engine.Search(ctx, spec)
		if err != nil {
			return 0, fmt.Errorf("searching page %d: %w", page, err)
		}

		for i := range result.Patients {
			if err := w.Write(patientRow(&result.Patients[i])); err != nil {
				return 0, fmt.Errorf("writing row: %w", err)
			}
			rows++
		}

		if len(result.Patients) < e.pageSize || rows >= result.Total {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp export file: %w", err)
	}

	if err := atomic.ReplaceFile(tmp.Name(), destPath); err != nil {
		return 0, fmt.Errorf("replacing %s: %w", destPath, err)
	}
	return rows, nil
}

// patientRow renders one patient in patientCSVHeader order.
func patientRow(p *patient.Patient) []string {
	return []string{
		patient.FormatReferenceNumber(p.ReferenceNumber),
		p.LastName, p.FirstName, p.MiddleName,
		p.DateOfBirth, string(p.Sex), p.CivilStatus, p.Occupation,
		p.Parents, p.ParentContact, p.School, p.ContactNumber,
		p.Address, p.Notes,
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
