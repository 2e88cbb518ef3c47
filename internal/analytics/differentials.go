package analytics

import (
	"errors"

	"github.com/sakif/analysis-sandbox/internal/table"
)

type DifferentialOptions struct {
	EntityColumn string // join key, default "entity_id"
}

// Differentials compares two collections of entities and tags each distinct
// entity with the side(s) holding it: "both", "a" or "b". Each output row
// carries the entity's first source row (side "both" takes the row from a);
// columns are the union of both inputs, nil where a side lacks a column.
// Rows come out grouped both-then-a-then-b, each group in source row order.
func Differentials(a, b *table.Table, opts DifferentialOptions) (*table.Table, error) {
	col := opts.EntityColumn
	if col == "" {
		col = DefaultEntityColumn
	}

	if a.NumRows() == 0 && b.NumRows() == 0 {
		return nil, errors.New("differentials needs at least one non-empty table")
	}
	if a.HasColumn("owner") || b.HasColumn("owner") {
		return nil, errors.New(`input tables must not already have an "owner" column`)
	}
	aCells, err := a.Column(col)
	if err != nil {
		return nil, err
	}
	bCells, err := b.Column(col)
	if err != nil {
		return nil, err
	}

	first := func(cells []any) ([]string, map[string]int) {
		var order []string
		pos := make(map[string]int)
		for i, c := range cells {
			if c == nil {
				continue
			}
			k := table.AsString(c)
			if _, ok := pos[k]; !ok {
				pos[k] = i
				order = append(order, k)
			}
		}
		return order, pos
	}
	aOrder, aPos := first(aCells)
	bOrder, bPos := first(bCells)

	names := a.Columns()
	names = append(names, "owner")
	for _, n := range b.Columns() {
		if !a.HasColumn(n) {
			names = append(names, n)
		}
	}

	var records []map[string]any
	add := func(row map[string]any, owner string) {
		row["owner"] = owner
		records = append(records, row)
	}
	for _, k := range aOrder {
		if _, shared := bPos[k]; shared {
			add(a.Row(aPos[k]), "both")
		}
	}
	for _, k := range aOrder {
		if _, shared := bPos[k]; !shared {
			add(a.Row(aPos[k]), "a")
		}
	}
	for _, k := range bOrder {
		if _, shared := aPos[k]; !shared {
			add(b.Row(bPos[k]), "b")
		}
	}

	return table.FromRecords(records, names...)
}
