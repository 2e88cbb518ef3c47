package viz

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sakif/analysis-sandbox/internal/table"
)

// Line renders y against x as a line chart with point markers. When hue
// names a column, rows are split into one series per distinct hue value,
// in first-seen order, each with its own palette color and legend entry.
// Rows with a nil x or y cell are skipped; each series is drawn in
// ascending x order.
func Line(t *table.Table, x, y, hue string, opts Options, outputDir string) (string, error) {
	xs, xok, err := floatCells(t, x)
	if err != nil {
		return "", err
	}
	ys, yok, err := floatCells(t, y)
	if err != nil {
		return "", err
	}

	var hueCells []any
	if hue != "" {
		hueCells, err = t.Column(hue)
		if err != nil {
			return "", err
		}
	}

	var names []string
	series := make(map[string]plotter.XYs)
	for i := 0; i < t.NumRows(); i++ {
		if !xok[i] || !yok[i] {
			continue
		}
		key := y
		if hue != "" {
			key = table.AsString(hueCells[i])
		}
		if _, seen := series[key]; !seen {
			names = append(names, key)
		}
		series[key] = append(series[key], plotter.XY{X: xs[i], Y: ys[i]})
	}

	p := newPlot(opts, orLabel(opts.XLabel, x), orLabel(opts.YLabel, y))
	for i, name := range names {
		pts := series[name]
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].X < pts[b].X })

		line, markers, err := plotter.NewLinePoints(pts)
		if err != nil {
			return "", fmt.Errorf("build line series %q: %w", name, err)
		}
		c := seriesColor(i)
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = c
		markers.GlyphStyle.Shape = draw.CircleGlyph{}
		markers.GlyphStyle.Radius = vg.Points(2.5)
		markers.GlyphStyle.Color = c

		p.Add(line, markers)
		if hue != "" {
			p.Legend.Add(name, line, markers)
		}
	}

	path, err := chartPath(outputDir, "line")
	if err != nil {
		return "", err
	}
	if err := savePNG(p, defaultWidth, defaultHeight, path); err != nil {
		return "", err
	}
	return path, nil
}
