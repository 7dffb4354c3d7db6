// Package frame holds the tabular dataset that analysis scripts run against.
// A Frame is bound into the sandbox interpreter under a well-known name, so
// its methods form the surface the generated scripts program against. Column
// lookups fail by panicking with *UnknownColumnError; the sandbox recovers
// the panic and classifies it, which is what lets the retry controller feed
// the real column list back to the model.
package frame

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// UnknownColumnError reports a lookup of a column that does not exist in the
// dataset. Available carries the live column list for diagnostics.
type UnknownColumnError struct {
	Name      string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q (available columns: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Frame is an immutable-by-convention tabular dataset. Cells are kept as the
// raw strings read from the file; numeric operations parse on demand.
type Frame struct {
	fileName string
	sheets   []string
	columns  []string
	rows     [][]string
}

// New builds a frame directly from headers and rows. Rows shorter than the
// header are padded with empty cells.
func New(fileName string, sheets, columns []string, rows [][]string) *Frame {
	norm := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, r)
			r = padded
		}
		norm[i] = r[:len(columns)]
	}
	return &Frame{fileName: fileName, sheets: sheets, columns: columns, rows: norm}
}

// FileName returns the name of the file the frame was loaded from.
func (f *Frame) FileName() string { return f.fileName }

// Columns returns a copy of the column names.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// RowCount returns the number of data rows.
func (f *Frame) RowCount() int { return len(f.rows) }

func (f *Frame) index(name string) int {
	for i, c := range f.columns {
		if c == name {
			return i
		}
	}
	panic(&UnknownColumnError{Name: name, Available: f.Columns()})
}

// Column returns the raw cell values of one column.
func (f *Frame) Column(name string) []string {
	idx := f.index(name)
	out := make([]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[idx]
	}
	return out
}

// Numbers parses one column as float64. Unparsable or empty cells become NaN
// so aggregations can skip them the way the original dataframe did.
func (f *Frame) Numbers(name string) []float64 {
	idx := f.index(name)
	out := make([]float64, len(f.rows))
	for i, r := range f.rows {
		out[i] = parseNumber(r[idx])
	}
	return out
}

// Sum totals the numeric cells of a column, skipping NaN.
func (f *Frame) Sum(name string) float64 {
	var total float64
	for _, v := range f.Numbers(name) {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// Mean averages the numeric cells of a column, skipping NaN. Returns 0 for
// a column with no numeric cells.
func (f *Frame) Mean(name string) float64 {
	var total float64
	var n int
	for _, v := range f.Numbers(name) {
		if !math.IsNaN(v) {
			total += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// Min returns the smallest numeric cell of a column, skipping NaN.
func (f *Frame) Min(name string) float64 {
	min := math.NaN()
	for _, v := range f.Numbers(name) {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
	}
	if math.IsNaN(min) {
		return 0
	}
	return min
}

// Max returns the largest numeric cell of a column, skipping NaN.
func (f *Frame) Max(name string) float64 {
	max := math.NaN()
	for _, v := range f.Numbers(name) {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	if math.IsNaN(max) {
		return 0
	}
	return max
}

// Count returns the number of non-empty cells in a column.
func (f *Frame) Count(name string) int {
	var n int
	for _, v := range f.Column(name) {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// Unique returns the distinct non-empty values of a column in first-seen
// order.
func (f *Frame) Unique(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range f.Column(name) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// GroupBySum groups rows by the key column and sums the value column within
// each group, in first-seen key order. The records are JSON-safe and shaped
// for direct use as chart data points.
func (f *Frame) GroupBySum(key, value string) []map[string]any {
	keyIdx := f.index(key)
	valIdx := f.index(value)
	totals := make(map[string]float64)
	var order []string
	for _, r := range f.rows {
		k := r[keyIdx]
		if _, ok := totals[k]; !ok {
			totals[k] = 0
			order = append(order, k)
		}
		if v := parseNumber(r[valIdx]); !math.IsNaN(v) {
			totals[k] += v
		}
	}
	out := make([]map[string]any, 0, len(order))
	for _, k := range order {
		out = append(out, map[string]any{key: k, value: totals[k]})
	}
	return out
}

// Filter returns a new frame containing the rows for which keep returns true
// on the named column's cell. Scripts may reassign df to the result; the
// reassignment persists for the rest of the session.
func (f *Frame) Filter(name string, keep func(cell string) bool) *Frame {
	idx := f.index(name)
	var rows [][]string
	for _, r := range f.rows {
		if keep(r[idx]) {
			rows = append(rows, r)
		}
	}
	return &Frame{fileName: f.fileName, sheets: f.sheets, columns: f.columns, rows: rows}
}

// SortBy returns a new frame sorted by the named column, numerically when
// both cells parse as numbers and lexically otherwise.
func (f *Frame) SortBy(name string, descending bool) *Frame {
	idx := f.index(name)
	rows := make([][]string, len(f.rows))
	copy(rows, f.rows)
	less := func(a, b string) bool {
		na, nb := parseNumber(a), parseNumber(b)
		if !math.IsNaN(na) && !math.IsNaN(nb) {
			return na < nb
		}
		return a < b
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][idx], rows[j][idx]
		if descending {
			return less(b, a)
		}
		return less(a, b)
	})
	return &Frame{fileName: f.fileName, sheets: f.sheets, columns: f.columns, rows: rows}
}

// Head returns up to n rows as JSON-safe records.
func (f *Frame) Head(n int) []map[string]any {
	if n > len(f.rows) {
		n = len(f.rows)
	}
	out := make([]map[string]any, 0, n)
	for _, r := range f.rows[:n] {
		out = append(out, f.record(r))
	}
	return out
}

// Records returns every row as a JSON-safe record: numeric cells become
// float64, empty cells become nil, everything else stays a string.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, f.record(r))
	}
	return out
}

func (f *Frame) record(row []string) map[string]any {
	rec := make(map[string]any, len(f.columns))
	for i, c := range f.columns {
		rec[c] = JSONSafe(row[i])
	}
	return rec
}

// JSONSafe converts one raw cell to a JSON-serializable value: empty cells
// become nil, parsable numbers become float64, everything else stays a
// string. NaN and infinities never escape.
func JSONSafe(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return cell
}

func parseNumber(cell string) float64 {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
