// Package viz renders Tables into static PNG charts. Rendering is
// deterministic and headless: fixed DPI and canvas size, a fixed ten-color
// palette cycled by series index, and no interactive display anywhere.
// Each render call writes exactly one file into the given output directory
// and returns its path; validation failures happen before any file is
// created, and a failed encode removes the partial file.
package viz

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/rs/xid"

	"github.com/sakif/analysis-sandbox/internal/table"
)

const (
	dpi           = 150
	defaultWidth  = 10 * vg.Inch
	defaultHeight = 6 * vg.Inch

	// rotationSlant is the tilt applied to crowded category tick labels.
	rotationSlant = math.Pi / 4
)

var (
	fontSize      = vg.Points(10)
	titleFontSize = vg.Points(13)

	gridColor = color.NRGBA{A: 70}

	// The palette is fixed so the same series index always gets the same
	// color across runs.
	seriesPalette = []color.Color{
		rgb(0x1f77b4), rgb(0xff7f0e), rgb(0x2ca02c), rgb(0xd62728), rgb(0x9467bd),
		rgb(0x8c564b), rgb(0xe377c2), rgb(0x7f7f7f), rgb(0xbcbd22), rgb(0x17becf),
	}
)

// Options are the caller-supplied presentation knobs shared by every chart
// kind. Empty labels fall back to humanized column names.
type Options struct {
	Title  string
	XLabel string
	YLabel string
}

func rgb(v uint32) color.Color {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func seriesColor(i int) color.Color {
	return seriesPalette[i%len(seriesPalette)]
}

// humanize turns a column identifier into an axis-ready label:
// "total_points" becomes "Total Points".
func humanize(column string) string {
	words := strings.FieldsFunc(column, func(r rune) bool {
		return r == '_' || r == ' '
	})
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func orLabel(label, column string) string {
	if label != "" {
		return label
	}
	return humanize(column)
}

// luminance reports the perceived brightness of a color in [0, 1].
func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 0xffff
}

// annotationColor picks black or white text for legibility against the
// given cell background.
func annotationColor(background color.Color) color.Color {
	if luminance(background) < 0.5 {
		return color.White
	}
	return color.Black
}

// newPlot builds a plot with the shared styling contract applied: sized
// fonts, padded bold title, and always-on light gridlines.
func newPlot(opts Options, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = opts.Title
	p.Title.TextStyle.Font.Size = titleFontSize
	p.Title.TextStyle.Font.Weight = xfont.WeightBold
	p.Title.Padding = vg.Points(12)

	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Label.TextStyle.Font.Size = fontSize
	p.Y.Label.TextStyle.Font.Size = fontSize
	p.X.Tick.Label.Font.Size = fontSize
	p.Y.Tick.Label.Font.Size = fontSize
	p.Legend.TextStyle.Font.Size = fontSize
	p.Legend.Top = true

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)
	return p
}

// rotateTicks slants an axis' tick labels so long category names stay
// readable.
func rotateTicks(a *plot.Axis, radians float64) {
	a.Tick.Label.Rotation = radians
	a.Tick.Label.XAlign = draw.XRight
	a.Tick.Label.YAlign = draw.YCenter
}

// chartPath reserves a fresh file name for one chart. The id is k-ordered,
// so lexically sorted names within one run directory follow creation order.
func chartPath(outputDir, kind string) (string, error) {
	dir := outputDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "charts_")
		if err != nil {
			return "", fmt.Errorf("create chart directory: %w", err)
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart directory: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", kind, xid.New())), nil
}

// floatCells resolves a column to per-row float values. Nil cells come
// back with ok=false; any non-numeric cell fails the whole column.
func floatCells(t *table.Table, column string) ([]float64, []bool, error) {
	cells, err := t.Column(column)
	if err != nil {
		return nil, nil, err
	}
	vals := make([]float64, len(cells))
	ok := make([]bool, len(cells))
	for i, cell := range cells {
		if cell == nil {
			continue
		}
		v, isNum := table.AsFloat(cell)
		if !isNum {
			return nil, nil, fmt.Errorf("column %q has non-numeric value %q at row %d", column, table.AsString(cell), i)
		}
		vals[i], ok[i] = v, true
	}
	return vals, ok, nil
}

// savePNG rasterizes the plot at the fixed DPI and writes it out. On any
// write failure the partial file is removed so no corrupt image is left
// behind.
func savePNG(p *plot.Plot, width, height vg.Length, path string) error {
	canvas := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	p.Draw(draw.New(canvas))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode chart: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close chart file: %w", err)
	}
	return nil
}
