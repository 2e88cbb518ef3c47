package sandbox

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/sakif/analysis-sandbox/internal/apperror"
	"github.com/sakif/analysis-sandbox/internal/executor"
	"github.com/sakif/analysis-sandbox/internal/table"
)

// assemble fills the result from whatever the session holds. It runs
// unconditionally so a failed script still hands back its stdout and
// every table and chart finished before the failure.
func (s *session) assemble(res *executor.ExecutionResult) {
	res.Stdout = s.stdout.String()
	s.collectTables(res)
	s.collectCharts(res)
}

// collectTables picks up every table the script left in its globals.
// Input bindings and names starting with "_" stay private; an oversized
// table is reported as a resource failure rather than returned.
func (s *session) collectTables(res *executor.ExecutionResult) {
	global := s.vm.GlobalObject()
	produced := make(map[string]*table.Table)
	for _, name := range global.Keys() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if _, isInput := s.inputs[name]; isInput {
			continue
		}
		t, ok := exportTable(global, name)
		if !ok {
			continue
		}
		if t.NumRows() > s.cfg.MaxRows {
			if res.Error == nil {
				res.Error = apperror.ResourceLimit(fmt.Sprintf(
					"produced table %q has %d rows, limit is %d", name, t.NumRows(), s.cfg.MaxRows))
			}
			continue
		}
		produced[name] = t
	}
	if len(produced) > 0 {
		res.Tables = produced
	}
}

// exportTable reads one global and reports whether it holds a table. A
// script-defined getter can throw; that global is skipped.
func exportTable(global *goja.Object, name string) (t *table.Table, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = nil, false
		}
	}()
	v := global.Get(name)
	if v == nil {
		return nil, false
	}
	t, ok = v.Export().(*table.Table)
	return t, ok
}

// collectCharts lists the run directory's images in creation order; the
// file ids embed a sortable timestamp, so the lexical walk matches render
// order.
func (s *session) collectCharts(res *executor.ExecutionResult) {
	res.ChartsDropped = s.charts.dropped

	paths, err := filepath.Glob(filepath.Join(s.runDir, "*.png"))
	if err != nil || len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	artifacts := make([]executor.ChartArtifact, 0, len(paths))
	for _, path := range paths {
		kind, title := s.charts.lookup(path)
		if kind == "" {
			kind = kindFromName(path)
		}
		artifacts = append(artifacts, executor.ChartArtifact{Path: path, Kind: kind, Title: title})
	}
	res.Charts = artifacts
}

func kindFromName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
