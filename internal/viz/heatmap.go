package viz

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sakif/analysis-sandbox/internal/table"
)

// Ratings share a fixed color scale so the same difficulty always renders
// the same shade regardless of the values present in one table.
const (
	heatScaleMin = 1
	heatScaleMax = 5
)

// heatGrid adapts a numeric matrix to the plotter grid interface. Rows are
// stored bottom-up because the plot's y axis ascends.
type heatGrid struct {
	z [][]float64
}

func (g heatGrid) Dims() (c, r int) { return len(g.z[0]), len(g.z) }
func (g heatGrid) Z(c, r int) float64 {
	return g.z[r][c]
}
func (g heatGrid) X(c int) float64 { return float64(c) }
func (g heatGrid) Y(r int) float64 { return float64(r) }

// Heatmap renders a matrix-shaped table as a colored grid. The first
// column supplies row labels and every remaining column one grid column,
// colored on a diverging scale fixed to the 1..5 difficulty range. Nil
// cells stay blank. When annotate is set each cell is overprinted with its
// value, in black or white depending on the cell color's luminance. The
// canvas grows with the matrix so large grids stay readable.
func Heatmap(t *table.Table, annotate bool, opts Options, outputDir string) (string, error) {
	if t.NumCols() < 2 {
		return "", fmt.Errorf("heatmap needs a label column and at least one value column, got %d columns", t.NumCols())
	}
	if t.NumRows() == 0 {
		return "", fmt.Errorf("heatmap needs a non-empty table")
	}

	columns := t.Columns()
	labelCells, err := t.Column(columns[0])
	if err != nil {
		return "", err
	}
	valueCols := columns[1:]

	nRows, nCols := t.NumRows(), len(valueCols)
	rowLabels := make([]string, nRows)
	for i, cell := range labelCells {
		rowLabels[i] = table.AsString(cell)
	}

	z := make([][]float64, nRows)
	for i := range z {
		z[i] = make([]float64, nCols)
	}
	for c, name := range valueCols {
		vals, ok, err := floatCells(t, name)
		if err != nil {
			return "", err
		}
		for r := 0; r < nRows; r++ {
			// Flip so the table's first row lands on the top grid row.
			gr := nRows - 1 - r
			if ok[r] {
				z[gr][c] = vals[r]
			} else {
				z[gr][c] = math.NaN()
			}
		}
	}

	colors := moreland.SmoothBlueRed()
	colors.SetMin(heatScaleMin)
	colors.SetMax(heatScaleMax)

	grid := heatGrid{z: z}
	heat := plotter.NewHeatMap(grid, colors.Palette(255))
	heat.Min = heatScaleMin
	heat.Max = heatScaleMax
	heat.Underflow, _ = colors.At(heatScaleMin)
	heat.Overflow, _ = colors.At(heatScaleMax)

	p := newPlot(opts, opts.XLabel, opts.YLabel)
	p.Add(heat)
	p.X.Tick.Marker = cellTicks(valueCols, false)
	p.Y.Tick.Marker = cellTicks(rowLabels, true)
	rotateTicks(&p.X, rotationSlant)
	p.X.Padding = 0
	p.Y.Padding = 0

	if annotate {
		if err := annotateCells(p, grid, colors); err != nil {
			return "", err
		}
	}

	path, err := chartPath(outputDir, "heatmap")
	if err != nil {
		return "", err
	}
	width := vg.Length(math.Max(8, 0.8*float64(nCols)+2)) * vg.Inch
	height := vg.Length(math.Max(4, 0.4*float64(nRows)+2)) * vg.Inch
	if err := savePNG(p, width, height, path); err != nil {
		return "", err
	}
	return path, nil
}

// cellTicks places one labeled tick at each cell center. Reversed ticks
// match grids stored bottom-up.
func cellTicks(labels []string, reversed bool) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(labels))
	for i, label := range labels {
		pos := i
		if reversed {
			pos = len(labels) - 1 - i
		}
		ticks[i] = plot.Tick{Value: float64(pos), Label: label}
	}
	return ticks
}

// annotateCells overprints every non-blank cell with its value, choosing
// the text color against the cell's background shade.
func annotateCells(p *plot.Plot, grid heatGrid, colors palette.ColorMap) error {
	nCols, nRows := grid.Dims()
	var xyl plotter.XYLabels
	var backgrounds []color.Color
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			v := grid.Z(c, r)
			if math.IsNaN(v) {
				continue
			}
			clamped := math.Min(math.Max(v, heatScaleMin), heatScaleMax)
			bg, err := colors.At(clamped)
			if err != nil {
				return fmt.Errorf("resolve cell color: %w", err)
			}
			xyl.XYs = append(xyl.XYs, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			xyl.Labels = append(xyl.Labels, table.AsString(v))
			backgrounds = append(backgrounds, bg)
		}
	}

	labels, err := plotter.NewLabels(xyl)
	if err != nil {
		return fmt.Errorf("build cell annotations: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = annotationColor(backgrounds[i])
		labels.TextStyle[i].Font.Size = vg.Points(9)
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(labels)
	return nil
}
