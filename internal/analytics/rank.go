package analytics

import (
	"github.com/sakif/analysis-sandbox/internal/table"
)

type RankOptions struct {
	// N is how many rows to keep (per group when grouping), default 10.
	N int
	// Ascending returns the bottom N instead of the top N.
	Ascending bool
	// GroupBy ranks within each group; groups keep first-seen order.
	GroupBy string
}

// RankBy returns the top (or bottom) N rows by a numeric metric with a
// 1-based "rank" column appended. The underlying sort is stable, so rows
// with equal metric values keep their original relative order. Rows with a
// nil metric are not ranked; a non-numeric metric value is an error.
func RankBy(t *table.Table, metric string, opts RankOptions) (*table.Table, error) {
	metricCells, err := t.Column(metric)
	if err != nil {
		return nil, err
	}
	n := opts.N
	if n <= 0 {
		n = DefaultRankN
	}

	groupKeys := []string{""}
	groups := map[string][]int{"": nil}
	if opts.GroupBy != "" {
		groupCells, err := t.Column(opts.GroupBy)
		if err != nil {
			return nil, err
		}
		groupKeys, groups = groupIndexes(groupCells)
	} else {
		for i := 0; i < t.NumRows(); i++ {
			groups[""] = append(groups[""], i)
		}
	}

	var picked []int
	for _, key := range groupKeys {
		var idx []int
		for _, i := range groups[key] {
			if metricCells[i] == nil {
				continue
			}
			if _, _, err := numericAt(metricCells, i, metric); err != nil {
				return nil, err
			}
			idx = append(idx, i)
		}
		sortIndexesByCells(idx, metricCells, !opts.Ascending)
		if len(idx) > n {
			idx = idx[:n]
		}
		picked = append(picked, idx...)
	}

	out, err := t.Take(picked)
	if err != nil {
		return nil, err
	}
	ranks := make([]any, len(picked))
	for i := range ranks {
		ranks[i] = float64(i + 1)
	}
	return out.WithColumn("rank", ranks)
}
