package sandbox

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/sakif/analysis-sandbox/internal/executor"
	"github.com/sakif/analysis-sandbox/internal/table"
	"github.com/sakif/analysis-sandbox/internal/viz"
)

// chartRecorder enforces the per-run chart cap and remembers what each
// rendered file is. Renders past the cap are skipped and counted, not
// failed, so a chart-happy script still finishes.
type chartRecorder struct {
	max      int
	rendered int
	dropped  int
	meta     map[string]chartMeta
}

type chartMeta struct {
	kind  string
	title string
}

func newChartRecorder(max int) *chartRecorder {
	return &chartRecorder{max: max, meta: make(map[string]chartMeta)}
}

// reserve claims a chart slot. When the cap is hit the render is recorded
// as dropped and false is returned.
func (r *chartRecorder) reserve() bool {
	if r.rendered >= r.max {
		r.dropped++
		return false
	}
	r.rendered++
	return true
}

// release returns a slot claimed by a render that failed.
func (r *chartRecorder) release() {
	r.rendered--
}

func (r *chartRecorder) record(path, kind, title string) {
	r.meta[path] = chartMeta{kind: kind, title: title}
}

func (r *chartRecorder) lookup(path string) (kind, title string) {
	m := r.meta[path]
	return m.kind, m.title
}

// Chart option shapes as scripts pass them. Field names surface in
// lowerCamel form, so a script writes {hue: "entity_id", xLabel: "Week"}.
type lineChartOpts struct {
	Hue    string
	Title  string
	XLabel string
	YLabel string
}

type barChartOpts struct {
	Horizontal bool
	Title      string
	XLabel     string
	YLabel     string
}

type heatmapChartOpts struct {
	// Annotate defaults to on; nil means the script left it unset.
	Annotate *bool
	Title    string
	XLabel   string
	YLabel   string
}

type comparisonChartOpts struct {
	Title  string
	XLabel string
	YLabel string
}

func (s *session) lineChart(t *table.Table, x, y string, opts lineChartOpts) (string, error) {
	if t == nil {
		return "", fmt.Errorf("line chart needs a table")
	}
	if !s.charts.reserve() {
		return "", nil
	}
	path, err := viz.Line(t, x, y, opts.Hue, viz.Options{
		Title:  opts.Title,
		XLabel: opts.XLabel,
		YLabel: opts.YLabel,
	}, s.runDir)
	if err != nil {
		s.charts.release()
		return "", err
	}
	s.charts.record(path, executor.ChartLine, opts.Title)
	return path, nil
}

func (s *session) barChart(t *table.Table, x, y string, opts barChartOpts) (string, error) {
	if t == nil {
		return "", fmt.Errorf("bar chart needs a table")
	}
	if !s.charts.reserve() {
		return "", nil
	}
	path, err := viz.Bar(t, x, y, opts.Horizontal, viz.Options{
		Title:  opts.Title,
		XLabel: opts.XLabel,
		YLabel: opts.YLabel,
	}, s.runDir)
	if err != nil {
		s.charts.release()
		return "", err
	}
	s.charts.record(path, executor.ChartBar, opts.Title)
	return path, nil
}

func (s *session) heatmapChart(t *table.Table, opts heatmapChartOpts) (string, error) {
	if t == nil {
		return "", fmt.Errorf("heatmap needs a table")
	}
	annotate := true
	if opts.Annotate != nil {
		annotate = *opts.Annotate
	}
	if !s.charts.reserve() {
		return "", nil
	}
	path, err := viz.Heatmap(t, annotate, viz.Options{
		Title:  opts.Title,
		XLabel: opts.XLabel,
		YLabel: opts.YLabel,
	}, s.runDir)
	if err != nil {
		s.charts.release()
		return "", err
	}
	s.charts.record(path, executor.ChartHeatmap, opts.Title)
	return path, nil
}

// comparisonChart takes a plain object mapping subject names to tables;
// key insertion order fixes bar and legend order.
func (s *session) comparisonChart(entities *goja.Object, metrics []string, opts comparisonChartOpts) (string, error) {
	if entities == nil {
		return "", fmt.Errorf("comparison needs an object of named tables")
	}
	keys := entities.Keys()
	names := make([]string, 0, len(keys))
	tables := make([]*table.Table, 0, len(keys))
	for _, key := range keys {
		t, ok := entities.Get(key).Export().(*table.Table)
		if !ok {
			return "", fmt.Errorf("comparison entry %q is not a table", key)
		}
		names = append(names, key)
		tables = append(tables, t)
	}

	if !s.charts.reserve() {
		return "", nil
	}
	path, err := viz.Comparison(names, tables, metrics, viz.Options{
		Title:  opts.Title,
		XLabel: opts.XLabel,
		YLabel: opts.YLabel,
	}, s.runDir)
	if err != nil {
		s.charts.release()
		return "", err
	}
	s.charts.record(path, executor.ChartComparison, opts.Title)
	return path, nil
}
