// Package analytics holds the pure transformation functions exposed to
// sandboxed scripts: rolling aggregates, trend extraction, schedule
// difficulty, set comparison, per-period deltas and ranking. Every function
// takes Tables and scalar parameters in and returns a new Table out; there
// is no I/O and no hidden state, so concurrent runs can share the package
// freely.
//
// Column parameters all have conventional defaults ("entity_id", "period",
// "points", "price") so short scripts stay short. A missing required column
// is always a descriptive error, never a silent empty result.
package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/sakif/analysis-sandbox/internal/table"
)

const (
	DefaultWindow       = 3
	DefaultLastN        = 5
	DefaultRankN        = 10
	DefaultEntityColumn = "entity_id"
	DefaultPeriodColumn = "period"
	DefaultPointsColumn = "points"
	DefaultMetricColumn = "price"
)

// groupIndexes splits row indexes by the string form of their group cell,
// keeping groups in first-seen order.
func groupIndexes(cells []any) ([]string, map[string][]int) {
	var keys []string
	groups := make(map[string][]int)
	for i, c := range cells {
		k := table.AsString(c)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	return keys, groups
}

// sortIndexesByCells stably reorders idx so the referenced cells ascend
// (or descend). Ties keep their original relative order.
func sortIndexesByCells(idx []int, cells []any, descending bool) {
	sort.SliceStable(idx, func(i, j int) bool {
		c := table.CompareCells(cells[idx[i]], cells[idx[j]])
		if descending {
			return c > 0
		}
		return c < 0
	})
}

// numericAt reads one cell as a number, erroring on non-numeric non-nil
// values. The bool reports whether a value was present.
func numericAt(cells []any, row int, column string) (float64, bool, error) {
	c := cells[row]
	if c == nil {
		return 0, false, nil
	}
	f, ok := table.AsFloat(c)
	if !ok {
		return 0, false, fmt.Errorf("column %q has non-numeric value %q at row %d",
			column, table.AsString(c), row)
	}
	return f, true, nil
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
