// Package batch parses submitted spreadsheet batches (XLSX or CSV) into
// ordered source rows.
package batch
