package viz

import (
	"fmt"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sakif/analysis-sandbox/internal/table"
)

// Bar renders one bar per row: the x column supplies category labels and
// the y column bar heights (nil counts as zero). Bars cycle through the
// palette in row order. Vertical charts slant the category labels to keep
// long names readable; horizontal charts list categories top-down in row
// order and swap the axis labels to match the flipped orientation.
func Bar(t *table.Table, x, y string, horizontal bool, opts Options, outputDir string) (string, error) {
	labelCells, err := t.Column(x)
	if err != nil {
		return "", err
	}
	heights, ok, err := floatCells(t, y)
	if err != nil {
		return "", err
	}

	n := t.NumRows()
	labels := make([]string, n)
	for i, cell := range labelCells {
		labels[i] = table.AsString(cell)
	}
	for i := range heights {
		if !ok[i] {
			heights[i] = 0
		}
	}
	if horizontal {
		// gonum lays nominal values out bottom-up; reversing keeps the
		// first row on top.
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			labels[i], labels[j] = labels[j], labels[i]
			heights[i], heights[j] = heights[j], heights[i]
		}
	}

	xLabel, yLabel := orLabel(opts.XLabel, x), orLabel(opts.YLabel, y)
	if horizontal {
		xLabel, yLabel = yLabel, xLabel
	}
	p := newPlot(opts, xLabel, yLabel)

	// One single-bar chart per row so each bar can take its own palette
	// color; the other slots stay at zero height.
	width := vg.Points(20)
	for i := 0; i < n; i++ {
		values := make(plotter.Values, n)
		values[i] = heights[i]
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return "", fmt.Errorf("build bar %q: %w", labels[i], err)
		}
		colorIdx := i
		if horizontal {
			colorIdx = n - 1 - i
		}
		bars.Color = seriesColor(colorIdx)
		bars.LineStyle.Width = 0
		bars.Horizontal = horizontal
		p.Add(bars)
	}
	if horizontal {
		p.NominalY(labels...)
	} else {
		p.NominalX(labels...)
		rotateTicks(&p.X, rotationSlant)
	}

	path, err := chartPath(outputDir, "bar")
	if err != nil {
		return "", err
	}
	if err := savePNG(p, defaultWidth, defaultHeight, path); err != nil {
		return "", err
	}
	return path, nil
}
