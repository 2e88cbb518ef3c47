package table

import (
	"fmt"
	"sort"
)

// Select returns a new table holding only the named columns, in the given
// order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{data: make(map[string][]any, len(names)), rows: t.rows}
	for _, name := range names {
		cells, ok := t.data[name]
		if !ok {
			return nil, t.errNoColumn(name)
		}
		if _, dup := out.data[name]; dup {
			return nil, fmt.Errorf("column %q selected twice", name)
		}
		copied := make([]any, len(cells))
		copy(copied, cells)
		out.data[name] = copied
		out.cols = append(out.cols, name)
	}
	return out, nil
}

// Filter returns the rows for which keep is true, preserving order. The map
// passed to keep is a per-row copy.
func (t *Table) Filter(keep func(row map[string]any) bool) *Table {
	var idx []int
	for i := 0; i < t.rows; i++ {
		if keep(t.Row(i)) {
			idx = append(idx, i)
		}
	}
	return t.fromRowIndexes(idx)
}

// SortBy returns the table sorted by one column. The sort is stable: equal
// cells keep their original relative order. Nil cells sort first, and mixed
// cell kinds group as nil, numbers, strings, bools.
func (t *Table) SortBy(column string, descending bool) (*Table, error) {
	cells, ok := t.data[column]
	if !ok {
		return nil, t.errNoColumn(column)
	}

	idx := make([]int, t.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		c := CompareCells(cells[idx[i]], cells[idx[j]])
		if descending {
			return c > 0
		}
		return c < 0
	})
	return t.fromRowIndexes(idx), nil
}

// Take returns a new table holding the given rows of t, in the given order.
// An index may appear more than once.
func (t *Table) Take(indexes []int) (*Table, error) {
	for _, i := range indexes {
		if i < 0 || i >= t.rows {
			return nil, fmt.Errorf("row %d out of range (table has %d rows)", i, t.rows)
		}
	}
	return t.fromRowIndexes(indexes), nil
}

// Head returns the first n rows. Negative n is treated as zero; n beyond
// the row count returns the whole table.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > t.rows {
		n = t.rows
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.fromRowIndexes(idx)
}

// Tail returns the last n rows, preserving their order.
func (t *Table) Tail(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > t.rows {
		n = t.rows
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = t.rows - n + i
	}
	return t.fromRowIndexes(idx)
}

// WithColumn returns the table with the named column set to cells. An
// existing column is replaced in place; a new one is appended. The cell
// count must match the row count.
func (t *Table) WithColumn(name string, cells []any) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("column name must not be empty")
	}
	if len(cells) != t.rows {
		return nil, fmt.Errorf("column %q has %d cells, want %d", name, len(cells), t.rows)
	}

	normalized := make([]any, len(cells))
	for i, v := range cells {
		cell, err := normalizeCell(v)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		normalized[i] = cell
	}

	out := &Table{cols: t.Columns(), data: make(map[string][]any, len(t.cols)+1), rows: t.rows}
	for _, c := range t.cols {
		src := t.data[c]
		copied := make([]any, len(src))
		copy(copied, src)
		out.data[c] = copied
	}
	if !out.HasColumn(name) {
		out.cols = append(out.cols, name)
	}
	out.data[name] = normalized
	return out, nil
}

// Pivot reshapes the table: distinct values of the index column become rows
// (first-seen order), distinct values of the columns column become columns
// (first-seen order), and the values column fills the cells. A combination
// that appears twice is an error; a combination that never appears yields a
// nil cell.
func (t *Table) Pivot(index, columns, values string) (*Table, error) {
	idxCells, err := t.Column(index)
	if err != nil {
		return nil, err
	}
	colCells, err := t.Column(columns)
	if err != nil {
		return nil, err
	}
	valCells, err := t.Column(values)
	if err != nil {
		return nil, err
	}

	var rowKeys []any
	rowPos := map[string]int{}
	var colKeys []string
	colPos := map[string]int{}

	for i := 0; i < t.rows; i++ {
		rk := AsString(idxCells[i])
		if _, ok := rowPos[rk]; !ok {
			rowPos[rk] = len(rowKeys)
			rowKeys = append(rowKeys, idxCells[i])
		}
		ck := AsString(colCells[i])
		if _, ok := colPos[ck]; !ok {
			colPos[ck] = len(colKeys)
			colKeys = append(colKeys, ck)
		}
	}

	grid := make([][]any, len(rowKeys))
	seen := make([][]bool, len(rowKeys))
	for i := range grid {
		grid[i] = make([]any, len(colKeys))
		seen[i] = make([]bool, len(colKeys))
	}
	for i := 0; i < t.rows; i++ {
		r := rowPos[AsString(idxCells[i])]
		c := colPos[AsString(colCells[i])]
		if seen[r][c] {
			return nil, fmt.Errorf("pivot has duplicate entry for %s=%s, %s=%s",
				index, AsString(idxCells[i]), columns, AsString(colCells[i]))
		}
		seen[r][c] = true
		grid[r][c] = valCells[i]
	}

	names := append([]string{index}, colKeys...)
	cols := make([][]any, len(names))
	cols[0] = rowKeys
	for c := range colKeys {
		col := make([]any, len(rowKeys))
		for r := range rowKeys {
			col[r] = grid[r][c]
		}
		cols[c+1] = col
	}
	return FromColumns(names, cols)
}
