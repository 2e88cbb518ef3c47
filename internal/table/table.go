// Package table implements the in-memory tabular value passed into and out
// of sandboxed runs: an ordered list of named columns over a shared row
// count. Cells are float64, string, bool or nil; integer input is widened
// to float64 on construction so scripts never see mixed numeric kinds.
//
// Tables are immutable. Every operation returns a new Table and leaves the
// receiver untouched, which is what makes them safe to share between
// concurrent runs.
package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
)

type Table struct {
	cols []string
	data map[string][]any
	rows int
}

// FromColumns builds a table from parallel column slices. Column names must
// be unique and non-empty, and every column must have the same length.
func FromColumns(names []string, columns [][]any) (*Table, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("got %d column names for %d columns", len(names), len(columns))
	}

	t := &Table{data: make(map[string][]any, len(names))}
	for i, name := range names {
		if name == "" {
			return nil, errors.New("column name must not be empty")
		}
		if _, dup := t.data[name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
		if i == 0 {
			t.rows = len(columns[i])
		} else if len(columns[i]) != t.rows {
			return nil, fmt.Errorf("column %q has %d cells, want %d", name, len(columns[i]), t.rows)
		}

		cells := make([]any, len(columns[i]))
		for j, v := range columns[i] {
			cell, err := normalizeCell(v)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, j, err)
			}
			cells[j] = cell
		}
		t.data[name] = cells
		t.cols = append(t.cols, name)
	}
	return t, nil
}

// FromRecords builds a table from row maps. Column order follows the order
// argument when given, otherwise the lexically sorted union of keys. Keys
// missing from a record become nil cells.
func FromRecords(records []map[string]any, order ...string) (*Table, error) {
	names := order
	if len(names) == 0 {
		seen := map[string]bool{}
		for _, rec := range records {
			for k := range rec {
				seen[k] = true
			}
		}
		for k := range seen {
			names = append(names, k)
		}
		sort.Strings(names)
	}

	columns := make([][]any, len(names))
	for i, name := range names {
		col := make([]any, len(records))
		for j, rec := range records {
			col[j] = rec[name]
		}
		columns[i] = col
	}
	return FromColumns(names, columns)
}

func (t *Table) NumRows() int {
	return t.rows
}

func (t *Table) NumCols() int {
	return len(t.cols)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]any, error) {
	cells, ok := t.data[name]
	if !ok {
		return nil, t.errNoColumn(name)
	}
	out := make([]any, len(cells))
	copy(out, cells)
	return out, nil
}

func (t *Table) Cell(row int, column string) (any, error) {
	cells, ok := t.data[column]
	if !ok {
		return nil, t.errNoColumn(column)
	}
	if row < 0 || row >= t.rows {
		return nil, fmt.Errorf("row %d out of range (table has %d rows)", row, t.rows)
	}
	return cells[row], nil
}

// Row returns one row as a fresh name-to-cell map.
func (t *Table) Row(i int) map[string]any {
	rec := make(map[string]any, len(t.cols))
	for _, name := range t.cols {
		rec[name] = t.data[name][i]
	}
	return rec
}

// Records returns every row as a name-to-cell map, in row order.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, t.rows)
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// String renders a short aligned preview, capped at ten rows.
func (t *Table) String() string {
	const previewRows = 10

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.cols, "\t"))

	n := t.rows
	if n > previewRows {
		n = previewRows
	}
	for i := 0; i < n; i++ {
		parts := make([]string, len(t.cols))
		for j, name := range t.cols {
			parts[j] = AsString(t.data[name][i])
		}
		fmt.Fprintln(w, strings.Join(parts, "\t"))
	}
	w.Flush()

	if t.rows > previewRows {
		fmt.Fprintf(&buf, "(showing first %d of %d rows)\n", previewRows, t.rows)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...], ...]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([][]any, t.rows)
	for i := range rows {
		row := make([]any, len(t.cols))
		for j, name := range t.cols {
			row[j] = t.data[name][i]
		}
		rows[i] = row
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{Columns: t.Columns(), Rows: rows})
}

// fromRowIndexes builds a new table holding the given rows of t, in order.
func (t *Table) fromRowIndexes(idx []int) *Table {
	out := &Table{cols: t.Columns(), data: make(map[string][]any, len(t.cols)), rows: len(idx)}
	for _, name := range out.cols {
		src := t.data[name]
		cells := make([]any, len(idx))
		for i, j := range idx {
			cells[i] = src[j]
		}
		out.data[name] = cells
	}
	return out
}

func (t *Table) errNoColumn(name string) error {
	msg := fmt.Sprintf("table has no column %q (available: %s)", name, strings.Join(t.cols, ", "))
	if hint := suggestColumn(name, t.cols); hint != "" {
		msg += fmt.Sprintf("; did you mean %q?", hint)
	}
	return errors.New(msg)
}

// suggestColumn finds a plausible intended column for a failed lookup:
// a case-insensitive match, an underscore-insensitive match, or a short
// in-order abbreviation such as "pts" for "points".
func suggestColumn(name string, candidates []string) string {
	for _, c := range candidates {
		if strings.EqualFold(name, c) {
			return c
		}
	}
	strip := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", ""))
	}
	for _, c := range candidates {
		if strip(name) == strip(c) {
			return c
		}
	}
	if len(name) >= 3 {
		for _, c := range candidates {
			if isSubsequence(strip(name), strip(c)) {
				return c
			}
		}
	}
	return ""
}

func isSubsequence(short, long string) bool {
	if len(short) >= len(long) {
		return false
	}
	i := 0
	for j := 0; j < len(long) && i < len(short); j++ {
		if short[i] == long[j] {
			i++
		}
	}
	return i == len(short)
}
