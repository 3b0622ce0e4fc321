package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrEmptyHeaderRow = errors.New("file has no header row")

// ReadHeaderRow extracts the first (header) row of an uploaded transaction
// file without sending it anywhere. Used as a cheap local sanity check
// before the remote validation call: a file with no header row at all is a
// user input error and never hits the network.
func ReadHeaderRow(src io.Reader, mimeType string) ([]string, error) {
	if isSpreadsheetMime(mimeType) {
		return readExcelHeaderRow(src)
	}
	return readCSVHeaderRow(src)
}

func isSpreadsheetMime(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "spreadsheetml") || strings.Contains(mimeType, "ms-excel")
}

func readCSVHeaderRow(src io.Reader) ([]string, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyHeaderRow
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}

	headers := trimHeaders(record)
	if len(headers) == 0 {
		return nil, ErrEmptyHeaderRow
	}
	return headers, nil
}

func readExcelHeaderRow(src io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyHeaderRow
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyHeaderRow
	}

	headers := trimHeaders(rows[0])
	if len(headers) == 0 {
		return nil, ErrEmptyHeaderRow
	}
	return headers, nil
}

func trimHeaders(record []string) []string {
	headers := make([]string, 0, len(record))
	for _, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			headers = append(headers, cell)
		}
	}
	return headers
}
