package analytics

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sakif/analysis-sandbox/internal/table"
)

type FormTrendOptions struct {
	EntityColumn string // default "entity_id"
	PeriodColumn string // default "period"
	PointsColumn string // default "points"
	// LastN is how many of each entity's most recent periods to summarize,
	// default 5.
	LastN int
}

// FormTrend summarizes each entity's recent scoring into one row: average
// (one decimal), total, min, max, periods played, and a trend label. The
// label compares the mean of the window's second half against its first
// half: more than half a point better is "up", more than half a point worse
// is "down", anything else is "flat". Output rows are ordered by average
// descending, ties keeping entity first-seen order.
func FormTrend(t *table.Table, opts FormTrendOptions) (*table.Table, error) {
	if opts.EntityColumn == "" {
		opts.EntityColumn = DefaultEntityColumn
	}
	if opts.PeriodColumn == "" {
		opts.PeriodColumn = DefaultPeriodColumn
	}
	if opts.PointsColumn == "" {
		opts.PointsColumn = DefaultPointsColumn
	}
	if opts.LastN <= 0 {
		opts.LastN = DefaultLastN
	}

	if t.NumRows() == 0 {
		return nil, errors.New("form trend needs a non-empty table")
	}
	entities, err := t.Column(opts.EntityColumn)
	if err != nil {
		return nil, err
	}
	periods, err := t.Column(opts.PeriodColumn)
	if err != nil {
		return nil, err
	}
	points, err := t.Column(opts.PointsColumn)
	if err != nil {
		return nil, err
	}

	keys, groups := groupIndexes(entities)

	var records []map[string]any
	for _, key := range keys {
		idx := append([]int(nil), groups[key]...)
		sortIndexesByCells(idx, periods, false)

		// Most recent N periods with a points value.
		var recent []int
		for _, i := range idx {
			if points[i] != nil {
				recent = append(recent, i)
			}
		}
		if len(recent) > opts.LastN {
			recent = recent[len(recent)-opts.LastN:]
		}
		if len(recent) == 0 {
			continue
		}

		pts := make([]float64, len(recent))
		for j, i := range recent {
			f, _, err := numericAt(points, i, opts.PointsColumn)
			if err != nil {
				return nil, err
			}
			pts[j] = f
		}

		trend := "flat"
		if mid := len(pts) / 2; mid > 0 {
			diff := stat.Mean(pts[mid:], nil) - stat.Mean(pts[:mid], nil)
			switch {
			case diff > 0.5:
				trend = "up"
			case diff < -0.5:
				trend = "down"
			}
		}

		records = append(records, map[string]any{
			opts.EntityColumn: entities[groups[key][0]],
			"avg_points":      round1(stat.Mean(pts, nil)),
			"total_points":    floats.Sum(pts),
			"min_points":      floats.Min(pts),
			"max_points":      floats.Max(pts),
			"periods_played":  float64(len(pts)),
			"trend":           trend,
		})
	}

	if len(records) == 0 {
		return nil, errors.New("form trend found no rows with points values")
	}

	out, err := table.FromRecords(records, opts.EntityColumn, "avg_points", "total_points",
		"min_points", "max_points", "periods_played", "trend")
	if err != nil {
		return nil, err
	}
	return out.SortBy("avg_points", true)
}
