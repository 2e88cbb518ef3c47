package analytics

import (
	"errors"

	"github.com/sakif/analysis-sandbox/internal/table"
)

type VelocityOptions struct {
	EntityColumn string // default "entity_id"
	MetricColumn string // default "price"
	PeriodColumn string // default "period"
}

// Velocity turns a per-period metric series into per-period deltas. Within
// each entity (first-seen order), rows are ordered by period and each row
// after the first yields the change from its predecessor plus a direction
// label from the delta's sign: "rising", "falling" or "flat". An entity's
// first period has no predecessor and produces no row; rows with a nil
// metric are skipped.
func Velocity(t *table.Table, opts VelocityOptions) (*table.Table, error) {
	if opts.EntityColumn == "" {
		opts.EntityColumn = DefaultEntityColumn
	}
	if opts.MetricColumn == "" {
		opts.MetricColumn = DefaultMetricColumn
	}
	if opts.PeriodColumn == "" {
		opts.PeriodColumn = DefaultPeriodColumn
	}

	if t.NumRows() == 0 {
		return nil, errors.New("velocity needs a non-empty table")
	}
	entities, err := t.Column(opts.EntityColumn)
	if err != nil {
		return nil, err
	}
	metrics, err := t.Column(opts.MetricColumn)
	if err != nil {
		return nil, err
	}
	periods, err := t.Column(opts.PeriodColumn)
	if err != nil {
		return nil, err
	}

	keys, groups := groupIndexes(entities)

	names := []string{opts.EntityColumn, opts.PeriodColumn, opts.MetricColumn, "delta", "direction"}
	cols := make([][]any, len(names))
	for _, key := range keys {
		idx := append([]int(nil), groups[key]...)
		sortIndexesByCells(idx, periods, false)

		havePrev := false
		var prev float64
		for _, i := range idx {
			cur, ok, err := numericAt(metrics, i, opts.MetricColumn)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if havePrev {
				delta := cur - prev
				direction := "flat"
				switch {
				case delta > 0:
					direction = "rising"
				case delta < 0:
					direction = "falling"
				}
				cols[0] = append(cols[0], entities[i])
				cols[1] = append(cols[1], periods[i])
				cols[2] = append(cols[2], cur)
				cols[3] = append(cols[3], delta)
				cols[4] = append(cols[4], direction)
			}
			prev, havePrev = cur, true
		}
	}
	return table.FromColumns(names, cols)
}
