package viz

import (
	"fmt"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sakif/analysis-sandbox/internal/table"
)

// Comparison renders grouped bars that put several subjects side by side
// on a shared set of metrics. Each metric is one group on the x axis and
// each named table contributes one bar per group, taken from its first
// row. A metric a table does not carry renders as a zero bar, so subjects
// with different column sets stay comparable. Bars are colored per subject
// and listed in the legend.
func Comparison(names []string, tables []*table.Table, metrics []string, opts Options, outputDir string) (string, error) {
	if len(names) != len(tables) {
		return "", fmt.Errorf("comparison needs one name per table, got %d names and %d tables", len(names), len(tables))
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("comparison needs at least one table")
	}
	if len(metrics) == 0 {
		return "", fmt.Errorf("comparison needs at least one metric")
	}
	for i, t := range tables {
		if t.NumRows() == 0 {
			return "", fmt.Errorf("comparison table %q has no rows", names[i])
		}
	}

	xLabel := opts.XLabel
	if xLabel == "" {
		xLabel = "Metric"
	}
	yLabel := opts.YLabel
	if yLabel == "" {
		yLabel = "Value"
	}
	p := newPlot(opts, xLabel, yLabel)

	slot := vg.Points(40)
	width := slot / vg.Length(len(tables))
	for i, t := range tables {
		values := make(plotter.Values, len(metrics))
		for j, metric := range metrics {
			if !t.HasColumn(metric) {
				continue
			}
			cell, err := t.Cell(0, metric)
			if err != nil {
				return "", err
			}
			if v, ok := table.AsFloat(cell); ok {
				values[j] = v
			} else if cell != nil {
				return "", fmt.Errorf("column %q has non-numeric value %q at row 0", metric, table.AsString(cell))
			}
		}

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return "", fmt.Errorf("build bars for %q: %w", names[i], err)
		}
		bars.Color = seriesColor(i)
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(float64(i)-float64(len(tables))/2+0.5) * width
		p.Add(bars)
		p.Legend.Add(names[i], bars)
	}

	labels := make([]string, len(metrics))
	for i, metric := range metrics {
		labels[i] = humanize(metric)
	}
	p.NominalX(labels...)
	rotateTicks(&p.X, rotationSlant)

	path, err := chartPath(outputDir, "comparison")
	if err != nil {
		return "", err
	}
	if err := savePNG(p, defaultWidth, defaultHeight, path); err != nil {
		return "", err
	}
	return path, nil
}
