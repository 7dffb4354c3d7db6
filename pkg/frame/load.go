package frame

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/askdf/askdf/pkg/domain"
)

// sampleRowCount is how many rows the schema summary carries; the model sees
// a sample, never the full file.
const sampleRowCount = 5

// Load parses an uploaded file into a frame. The extension selects the
// loader: .csv uses the CSV reader, everything else is treated as a
// spreadsheet.
func Load(data []byte, fileName string) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("file %q is empty", fileName)
	}
	if strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return FromCSV(data, fileName)
	}
	return FromXLSX(data, fileName)
}

// FromCSV parses CSV bytes. The first record is the header row.
func FromCSV(data []byte, fileName string) (*Frame, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv %q: %w", fileName, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %q has no header row", fileName)
	}
	return New(fileName, []string{fileName}, trimHeaders(records[0]), records[1:]), nil
}

// FromXLSX parses spreadsheet bytes. Only the first sheet is loaded; the
// remaining sheet names are still recorded in the schema summary.
func FromXLSX(data []byte, fileName string) (*Frame, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet %q: %w", fileName, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %q has no sheets", fileName)
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return New(fileName, sheets, trimHeaders(rows[0]), rows[1:]), nil
}

func trimHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

// Schema produces the lightweight summary sent to the model: column names, a
// small row sample, and the row count.
func (f *Frame) Schema() domain.SchemaContext {
	n := sampleRowCount
	if n > len(f.rows) {
		n = len(f.rows)
	}
	sample := make([][]any, 0, n)
	for _, r := range f.rows[:n] {
		cells := make([]any, len(r))
		for i, c := range r {
			cells[i] = JSONSafe(c)
		}
		sample = append(sample, cells)
	}
	return domain.SchemaContext{
		FileName:   f.fileName,
		SheetNames: append([]string(nil), f.sheets...),
		Columns:    f.Columns(),
		SampleRows: sample,
		RowCount:   len(f.rows),
	}
}
