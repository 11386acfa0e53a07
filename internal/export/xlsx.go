package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/visit"
)

// VisitLister is the slice of the visit repository the exporter needs.
type VisitLister interface {
	ListDetailRange(ctx context.Context, from, to string, limit, offset int) ([]visit.Detail, error)
}

const visitSheetName = "Visits"

// visitXLSXHeader is the report column order, following the patient
// columns then visit columns layout of the CSV exports.
var visitXLSXHeader = []string{
	"Reference", "Patient", "Date", "Time",
	"Weight (kg)", "Height (cm)", "BP", "Temp (°C)",
	"Type", "Notes", "Recorded",
}

// ExportVisitsXLSX writes all visits in the inclusive date range to an
// XLSX workbook at destPath, newest first. Empty bounds are open ends.
// Returns the number of data rows written.
func (e *Exporter) ExportVisitsXLSX(ctx context.Context, from, to, destPath string) (int, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // nothing to recover after save

	if err := f.SetSheetName("Sheet1", visitSheetName); err != nil {
		return 0, fmt.Errorf("naming sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("creating header style: %w", err)
	}

	for col, header := range visitXLSXHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(visitSheetName, cell, header); err != nil {
			return 0, fmt.Errorf("writing header: %w", err)
		}
		if err := f.SetCellStyle(visitSheetName, cell, cell, headerStyle); err != nil {
			return 0, fmt.Errorf("styling header: %w", err)
		}
	}

	rows := 0
	for offset := 0; ; offset += e.pageSize {
		details, err := e.visits.ListDetailRange(ctx, from, to, e.pageSize, offset)
		if err != nil {
			return 0, fmt.Errorf("listing visits at offset %d: %w", offset, err)
		}

		for i := range details {
			if err := writeVisitRow(f, rows+2, &details[i]); err != nil {
				return 0, err
			}
			rows++
		}

		if len(details) < e.pageSize {
			break
		}
	}

	// Freeze the header row.
	if err := f.SetPanes(visitSheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return 0, fmt.Errorf("freezing header: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".export-*.xlsx")
	if err != nil {
		return 0, fmt.Errorf("creating temp export file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone already on the success path

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return 0, fmt.Errorf("writing workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp export file: %w", err)
	}

	if err := atomic.ReplaceFile(tmp.Name(), destPath); err != nil {
		return 0, fmt.Errorf("replacing %s: %w", destPath, err)
	}
	return rows, nil
}

// writeVisitRow renders one visit detail at the given 1-indexed row.
func writeVisitRow(f *excelize.File, row int, d *visit.Detail) error {
	values := []any{
		patient.FormatReferenceNumber(d.ReferenceNumber),
		d.PatientName,
		d.VisitDate,
		d.VisitTime,
		floatOrBlank(d.WeightKg),
		floatOrBlank(d.HeightCm),
		d.BloodPressure,
		floatOrBlank(d.TemperatureC),
		string(d.Type),
		d.Notes,
		d.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}

	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row cell: %w", err)
	}
	if err := f.SetSheetRow(visitSheetName, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}

// floatOrBlank keeps absent vitals as empty cells rather than zeros.
func floatOrBlank(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
