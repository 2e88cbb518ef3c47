package analytics

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/sakif/analysis-sandbox/internal/table"
)

type RollingOptions struct {
	// Window is the number of trailing rows averaged, default 3.
	Window int
	// GroupBy restricts each window to rows sharing the same value in this
	// column. Empty means one global series.
	GroupBy string
	// OutColumn names the added column, default "<column>_rolling_<window>".
	OutColumn string
}

// RollingMean returns t with an added trailing moving-average column. The
// first rows of each series average whatever is available instead of being
// undefined (minimum-periods-one semantics); nil cells are skipped, and a
// window of only nil cells yields a nil cell.
func RollingMean(t *table.Table, column string, opts RollingOptions) (*table.Table, error) {
	cells, err := t.Column(column)
	if err != nil {
		return nil, err
	}

	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	outColumn := opts.OutColumn
	if outColumn == "" {
		outColumn = fmt.Sprintf("%s_rolling_%d", column, window)
	}

	var groupCells []any
	if opts.GroupBy != "" {
		if groupCells, err = t.Column(opts.GroupBy); err != nil {
			return nil, err
		}
	}

	result := make([]any, len(cells))
	buffers := make(map[string][]any)
	for i, v := range cells {
		if _, _, err := numericAt(cells, i, column); err != nil {
			return nil, err
		}

		key := ""
		if groupCells != nil {
			key = table.AsString(groupCells[i])
		}
		buf := append(buffers[key], v)
		if len(buf) > window {
			buf = buf[1:]
		}
		buffers[key] = buf

		var xs []float64
		for _, c := range buf {
			if f, ok := table.AsFloat(c); ok {
				xs = append(xs, f)
			}
		}
		if len(xs) == 0 {
			result[i] = nil
		} else {
			result[i] = stat.Mean(xs, nil)
		}
	}
	return t.WithColumn(outColumn, result)
}
