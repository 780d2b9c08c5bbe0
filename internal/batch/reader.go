package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrFormat marks batch files the reader cannot use: unreadable input or a
// missing locator column. Format errors are job-fatal.
var ErrFormat = errors.New("batch format error")

// Row is one usable line of a submitted batch.
type Row struct {
	Locator      string
	PlatformHint string
}

const (
	locatorColumn  = "URL"
	platformColumn = "PLATFORM"
)

// Read parses a batch file into ordered rows. CSV is selected by file
// extension; everything else is treated as an Excel workbook, matching the
// upload form's accepted types. Column headers match case-insensitively.
// Rows with a blank locator are skipped, not errors.
func Read(path string) ([]Row, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSV(path)
	}
	return readExcel(path)
}

func readCSV(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open batch file: %w", ErrFormat, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse csv: %w", ErrFormat, err)
		}
		records = append(records, record)
	}
	return rowsFromRecords(records)
}

func readExcel(path string) ([]Row, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ErrFormat, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrFormat)
	}
	records, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrFormat, sheets[0], err)
	}
	return rowsFromRecords(records)
}

func rowsFromRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: batch file is empty", ErrFormat)
	}

	locatorIdx, platformIdx := -1, -1
	for i, header := range records[0] {
		switch strings.ToUpper(strings.TrimSpace(header)) {
		case locatorColumn:
			if locatorIdx < 0 {
				locatorIdx = i
			}
		case platformColumn, "PLATFORM HINT", "PLATFORM_HINT":
			if platformIdx < 0 {
				platformIdx = i
			}
		}
	}
	if locatorIdx < 0 {
		return nil, fmt.Errorf("%w: file must contain a column named %q", ErrFormat, locatorColumn)
	}

	var rows []Row
	for _, record := range records[1:] {
		locator := cell(record, locatorIdx)
		if locator == "" {
			continue
		}
		rows = append(rows, Row{
			Locator:      locator,
			PlatformHint: cell(record, platformIdx),
		})
	}
	return rows, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
