// Package export renders record sets to CSV and XLSX files.
//
// Exports stream page by page so a full-table export never loads the
// whole dataset, and they land via temp file plus atomic rename.
package export
