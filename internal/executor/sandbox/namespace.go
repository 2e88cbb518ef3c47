package sandbox

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/dop251/goja"

	"github.com/sakif/analysis-sandbox/internal/analytics"
	"github.com/sakif/analysis-sandbox/internal/apperror"
	"github.com/sakif/analysis-sandbox/internal/table"
)

// maxCallStack bounds recursion depth so runaway scripts hit a resource
// error instead of exhausting the host stack.
const maxCallStack = 500

// randSeed fixes Math.random so repeated runs of the same script produce
// the same output.
const randSeed = 1

// blockedNames are namespace entries scripts commonly reach for that the
// sandbox refuses by policy. Each resolves to a getter that raises a
// clear "not available" error instead of a bare ReferenceError.
var blockedNames = []string{
	// module systems and process control
	"require", "process", "module", "exports", "exit", "quit",
	// network access
	"fetch", "XMLHttpRequest", "WebSocket", "http", "net",
	// host resources
	"open", "read", "write", "os", "fs", "child_process",
	// timers have no event loop to run on
	"setTimeout", "setInterval", "setImmediate",
	// dynamic code loading
	"eval", "Function",
}

// lockdownScript cuts off the constructor route to dynamic code: with the
// globals hidden behind throwing getters, reaching a function constructor
// through an instance is the remaining way to compile source at runtime.
const lockdownScript = `
(function () {
	"use strict";
	var protos = [
		Function.prototype,
		Object.getPrototypeOf(function* () {}),
		Object.getPrototypeOf(async function () {}),
	];
	for (var i = 0; i < protos.length; i++) {
		Object.defineProperty(protos[i], "constructor", {
			value: __blocked,
			writable: false,
			configurable: false,
			enumerable: false,
		});
	}
})();
`

// blockedGetter produces the accessor body behind every blocked name.
func blockedGetter(name string) func() (goja.Value, error) {
	return func() (goja.Value, error) {
		return nil, apperror.BlockedName(name)
	}
}

// session is the per-run interpreter state: one VM, one stdout buffer,
// one chart recorder, one output directory. Sessions are never reused
// across runs.
type session struct {
	vm       *goja.Runtime
	cfg      Config
	stdout   bytes.Buffer
	charts   *chartRecorder
	runDir   string
	inputs   map[string]*table.Table
	reserved map[string]struct{}
}

// newSession builds a fully restricted namespace around the input tables.
func newSession(cfg Config, bindings map[string]*table.Table, runDir string) (*session, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	vm.SetMaxCallStackSize(maxCallStack)
	vm.SetRandSource(rand.New(rand.NewSource(randSeed)).Float64)

	s := &session{
		vm:       vm,
		cfg:      cfg,
		charts:   newChartRecorder(cfg.MaxCharts),
		runDir:   runDir,
		inputs:   bindings,
		reserved: make(map[string]struct{}),
	}
	for _, name := range blockedNames {
		s.reserved[name] = struct{}{}
	}

	if err := s.installModules(); err != nil {
		return nil, err
	}
	if err := s.installBuiltins(); err != nil {
		return nil, err
	}
	if err := s.installBindings(bindings); err != nil {
		return nil, err
	}
	if err := s.lockdown(); err != nil {
		return nil, err
	}
	return s, nil
}

// defineModule publishes a namespace object as a frozen, non-enumerable
// global.
func (s *session) defineModule(name string, obj *goja.Object) error {
	s.reserved[name] = struct{}{}
	err := s.vm.GlobalObject().DefineDataProperty(
		name, obj, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	if err != nil {
		return fmt.Errorf("define module %q: %w", name, err)
	}
	return nil
}

func (s *session) installModules() error {
	set := func(obj *goja.Object, entries map[string]any) error {
		for name, fn := range entries {
			if err := obj.Set(name, fn); err != nil {
				return fmt.Errorf("bind %q: %w", name, err)
			}
		}
		return nil
	}

	analyticsMod := s.vm.NewObject()
	if err := set(analyticsMod, map[string]any{
		"rollingMean":       analytics.RollingMean,
		"formTrend":         analytics.FormTrend,
		"fixtureDifficulty": analytics.FixtureDifficulty,
		"differentials":     analytics.Differentials,
		"velocity":          analytics.Velocity,
		"rankBy":            analytics.RankBy,
	}); err != nil {
		return err
	}
	if err := s.defineModule("analytics", analyticsMod); err != nil {
		return err
	}

	vizMod := s.vm.NewObject()
	if err := set(vizMod, map[string]any{
		"line":       s.lineChart,
		"bar":        s.barChart,
		"heatmap":    s.heatmapChart,
		"comparison": s.comparisonChart,
	}); err != nil {
		return err
	}
	if err := s.defineModule("viz", vizMod); err != nil {
		return err
	}

	tableMod := s.vm.NewObject()
	if err := set(tableMod, map[string]any{
		"fromColumns": s.tableFromColumns,
		"fromRecords": s.tableFromRecords,
	}); err != nil {
		return err
	}
	if err := s.defineModule("tbl", tableMod); err != nil {
		return err
	}

	numMod := s.vm.NewObject()
	if err := set(numMod, map[string]any{
		"mean":   numMean,
		"median": numMedian,
		"stdDev": numStdDev,
		"sum":    builtinSum,
		"min":    numMin,
		"max":    numMax,
	}); err != nil {
		return err
	}
	if err := s.defineModule("num", numMod); err != nil {
		return err
	}

	consoleMod := s.vm.NewObject()
	if err := set(consoleMod, map[string]any{
		"log":   s.print,
		"error": s.print,
		"warn":  s.print,
	}); err != nil {
		return err
	}
	if err := s.defineModule("console", consoleMod); err != nil {
		return err
	}

	// Every library function is also a bare global, so a short script can
	// call rollingMean(...) or renderBar(...) without the prefix.
	aliases := map[string]any{
		"rollingMean":       analytics.RollingMean,
		"formTrend":         analytics.FormTrend,
		"fixtureDifficulty": analytics.FixtureDifficulty,
		"differentials":     analytics.Differentials,
		"velocity":          analytics.Velocity,
		"rankBy":            analytics.RankBy,
		"renderLine":        s.lineChart,
		"renderBar":         s.barChart,
		"renderHeatmap":     s.heatmapChart,
		"renderComparison":  s.comparisonChart,
	}
	global := s.vm.GlobalObject()
	for name, fn := range aliases {
		s.reserved[name] = struct{}{}
		err := global.DefineDataProperty(
			name, s.vm.ToValue(fn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
		if err != nil {
			return fmt.Errorf("alias %q: %w", name, err)
		}
	}
	return nil
}

// installBindings exposes the caller's tables as read-only globals.
func (s *session) installBindings(bindings map[string]*table.Table) error {
	global := s.vm.GlobalObject()
	for name, t := range bindings {
		if _, taken := s.reserved[name]; taken {
			return fmt.Errorf("binding name %q is reserved", name)
		}
		err := global.DefineDataProperty(
			name, s.vm.ToValue(t), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
		if err != nil {
			return fmt.Errorf("bind input table %q: %w", name, err)
		}
	}
	return nil
}

// lockdown installs the blocked-name getters and cripples the function
// constructors. It must run after every legitimate global is in place:
// from here on, resolving a blocked name throws.
func (s *session) lockdown() error {
	if err := s.vm.GlobalObject().DefineDataProperty(
		"__blocked", s.vm.ToValue(blockedGetter("Function")),
		goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		return fmt.Errorf("install lockdown hook: %w", err)
	}
	if _, err := s.vm.RunScript("lockdown.js", lockdownScript); err != nil {
		return fmt.Errorf("run lockdown script: %w", err)
	}

	global := s.vm.GlobalObject()
	for _, name := range blockedNames {
		getter := s.vm.ToValue(blockedGetter(name))
		err := global.DefineAccessorProperty(name, getter, nil, goja.FLAG_FALSE, goja.FLAG_FALSE)
		if err != nil {
			return fmt.Errorf("block %q: %w", name, err)
		}
	}
	return nil
}
