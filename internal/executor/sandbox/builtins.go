package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sakif/analysis-sandbox/internal/apperror"
	"github.com/sakif/analysis-sandbox/internal/table"
)

// installBuiltins defines the safe global helpers scripts can lean on in
// addition to the namespace modules.
func (s *session) installBuiltins() error {
	builtins := map[string]any{
		"print":     s.print,
		"len":       builtinLen,
		"range":     builtinRange,
		"zip":       builtinZip,
		"sorted":    builtinSorted,
		"enumerate": builtinEnumerate,
		"min":       builtinMin,
		"max":       builtinMax,
		"sum":       builtinSum,
		"round":     builtinRound,
	}
	global := s.vm.GlobalObject()
	for name, fn := range builtins {
		s.reserved[name] = struct{}{}
		err := global.DefineDataProperty(
			name, s.vm.ToValue(fn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
		if err != nil {
			return fmt.Errorf("install builtin %q: %w", name, err)
		}
	}
	return nil
}

// print writes its space-joined arguments and a newline to the run's
// stdout buffer. Tables render as their bounded text preview.
func (s *session) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = formatArg(arg)
	}
	fmt.Fprintln(&s.stdout, strings.Join(parts, " "))
	return goja.Undefined()
}

func formatArg(v goja.Value) string {
	if t, ok := v.Export().(*table.Table); ok {
		return t.String()
	}
	return v.String()
}

// capRows rejects tables past the configured row limit; nothing in the
// sandbox ever truncates silently.
func (s *session) capRows(t *table.Table) (*table.Table, error) {
	if t.NumRows() > s.cfg.MaxRows {
		return nil, apperror.ResourceLimit(fmt.Sprintf(
			"table has %d rows, limit is %d", t.NumRows(), s.cfg.MaxRows))
	}
	return t, nil
}

func (s *session) tableFromColumns(names []string, columns [][]any) (*table.Table, error) {
	t, err := table.FromColumns(names, columns)
	if err != nil {
		return nil, err
	}
	return s.capRows(t)
}

func (s *session) tableFromRecords(records []map[string]any, order ...string) (*table.Table, error) {
	t, err := table.FromRecords(records, order...)
	if err != nil {
		return nil, err
	}
	return s.capRows(t)
}

func builtinLen(v goja.Value) (int, error) {
	switch x := v.Export().(type) {
	case *table.Table:
		return x.NumRows(), nil
	case string:
		return len([]rune(x)), nil
	case []any:
		return len(x), nil
	case map[string]any:
		return len(x), nil
	default:
		return 0, fmt.Errorf("len is not defined for %s", v.String())
	}
}

func builtinRange(args ...int) ([]int, error) {
	var start, stop, step int
	switch len(args) {
	case 1:
		stop, step = args[0], 1
	case 2:
		start, stop, step = args[0], args[1], 1
	case 3:
		start, stop, step = args[0], args[1], args[2]
	default:
		return nil, fmt.Errorf("range takes 1 to 3 arguments, got %d", len(args))
	}
	if step == 0 {
		return nil, fmt.Errorf("range step must not be zero")
	}

	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, nil
}

// zip pairs elements index-wise, stopping at the shortest list.
func builtinZip(lists ...[]any) [][]any {
	if len(lists) == 0 {
		return nil
	}
	n := len(lists[0])
	for _, l := range lists[1:] {
		if len(l) < n {
			n = len(l)
		}
	}
	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		row := make([]any, len(lists))
		for j, l := range lists {
			row[j] = l[i]
		}
		rows[i] = row
	}
	return rows
}

func builtinSorted(values []any, descending bool) []any {
	out := append([]any(nil), values...)
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return table.CompareCells(out[j], out[i]) < 0
		}
		return table.CompareCells(out[i], out[j]) < 0
	})
	return out
}

func builtinEnumerate(values []any) [][]any {
	out := make([][]any, len(values))
	for i, v := range values {
		out[i] = []any{i, v}
	}
	return out
}

func builtinMin(args ...any) (any, error) {
	return pickExtreme("min", args, func(cmp int) bool { return cmp < 0 })
}

func builtinMax(args ...any) (any, error) {
	return pickExtreme("max", args, func(cmp int) bool { return cmp > 0 })
}

// pickExtreme accepts either one list or several scalars.
func pickExtreme(name string, args []any, better func(int) bool) (any, error) {
	values := args
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			values = list
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s needs at least one value", name)
	}
	best := values[0]
	for _, v := range values[1:] {
		if better(table.CompareCells(v, best)) {
			best = v
		}
	}
	return best, nil
}

func builtinSum(xs []float64) float64 {
	return floats.Sum(xs)
}

func builtinRound(x float64, digits ...int) float64 {
	d := 0
	if len(digits) > 0 {
		d = digits[0]
	}
	p := math.Pow(10, float64(d))
	return math.Round(x*p) / p
}

func numMean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("mean needs at least one value")
	}
	return stat.Mean(xs, nil), nil
}

func numMedian(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("median needs at least one value")
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil), nil
}

func numStdDev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, fmt.Errorf("stdDev needs at least two values")
	}
	return stat.StdDev(xs, nil), nil
}

func numMin(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("min needs at least one value")
	}
	return floats.Min(xs), nil
}

func numMax(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("max needs at least one value")
	}
	return floats.Max(xs), nil
}
