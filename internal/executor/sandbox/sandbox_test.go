package sandbox_test

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/analysis-sandbox/internal/apperror"
	"github.com/sakif/analysis-sandbox/internal/executor"
	"github.com/sakif/analysis-sandbox/internal/executor/sandbox"
	"github.com/sakif/analysis-sandbox/internal/table"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTable(t *testing.T, names []string, columns [][]any) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns(names, columns)
	require.NoError(t, err)
	return tbl
}

func playersTable(t *testing.T) *table.Table {
	t.Helper()
	return mustTable(t,
		[]string{"name", "score"},
		[][]any{
			{"Alpha", "Beta", "Gamma"},
			{42.0, 17.0, 29.0},
		},
	)
}

func TestSandboxExecutor(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	t.Run("successful execution", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: `print("Hello from the sandbox!")`,
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		assert.Equal(t, "Hello from the sandbox!\n", res.Stdout)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("multiline logic", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`function fib(n) {`,
				`	if (n <= 1) return n;`,
				`	return fib(n - 1) + fib(n - 2);`,
				`}`,
				`print(fib(10));`,
			}, "\n"),
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		assert.Equal(t, "55\n", res.Stdout)
	})

	t.Run("console and print share the buffer", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: `console.log("one", 1); print("two", 2);`,
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		assert.Equal(t, "one 1\ntwo 2\n", res.Stdout)
	})

	t.Run("inputs are visible and read-only", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`print(players.numRows(), players.numCols());`,
				`players = "overwritten";`,
				`print(players.numRows());`,
			}, "\n"),
			Bindings: map[string]*table.Table{"players": playersTable(t)},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		assert.Equal(t, "3 2\n3\n", res.Stdout)
		assert.Empty(t, res.Tables, "input bindings are not echoed back")
	})

	t.Run("produced tables are collected", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`top = players.sortBy("score", true).head(2);`,
				`_scratch = players.head(1);`,
				`note = "not a table";`,
			}, "\n"),
			Bindings: map[string]*table.Table{"players": playersTable(t)},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		require.Len(t, res.Tables, 1, "underscore names and non-tables stay private")

		top := res.Tables["top"]
		require.NotNil(t, top)
		names, nerr := top.Column("name")
		require.NoError(t, nerr)
		assert.Equal(t, []any{"Alpha", "Gamma"}, names)
	})

	t.Run("analytics from script", func(t *testing.T) {
		history := mustTable(t,
			[]string{"entity_id", "period", "points"},
			[][]any{
				{"A", "A", "A", "A"},
				{1.0, 2.0, 3.0, 4.0},
				{10.0, 20.0, 30.0, 40.0},
			},
		)
		req := executor.ExecutionRequest{
			Code: `smoothed = analytics.rollingMean(history, "points", {window: 2});`,
			Bindings: map[string]*table.Table{"history": history},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		require.Contains(t, res.Tables, "smoothed")

		rolled, rerr := res.Tables["smoothed"].Column("points_rolling_2")
		require.NoError(t, rerr)
		assert.Equal(t, []any{10.0, 15.0, 25.0, 35.0}, rolled)
	})

	t.Run("library functions work without the namespace prefix", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`ranked = rankBy(players, "score", {n: 1});`,
				`renderBar(ranked, "name", "score", {title: "Top"});`,
			}, "\n"),
			Bindings: map[string]*table.Table{"players": playersTable(t)},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		require.Contains(t, res.Tables, "ranked")
		assert.Equal(t, 1, res.Tables["ranked"].NumRows())
		assert.Len(t, res.Charts, 1)
	})

	t.Run("empty code", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: "   \n\t"})
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindCompile, res.Error.Kind)
		assert.Contains(t, res.Error.Message, "empty code string")
	})

	t.Run("syntax error", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: `var x = (;`})
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindCompile, res.Error.Kind)
		assert.True(t, errors.Is(res.Error, apperror.ErrCompile))
		assert.Empty(t, res.Stdout)
	})

	t.Run("runtime error keeps earlier output", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`print("before the crash");`,
				`missingFunction();`,
				`print("after the crash");`,
			}, "\n"),
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindRuntime, res.Error.Kind)
		assert.Contains(t, res.Error.Message, "missingFunction")
		assert.Equal(t, "before the crash\n", res.Stdout)
	})

	t.Run("failure keeps finished artifacts", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`kept = players.head(2);`,
				`viz.bar(players, "name", "score", {title: "Scores"});`,
				`missingFunction();`,
			}, "\n"),
			Bindings: map[string]*table.Table{"players": playersTable(t)},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindRuntime, res.Error.Kind)
		assert.Contains(t, res.Tables, "kept")
		require.Len(t, res.Charts, 1)
		assert.FileExists(t, res.Charts[0].Path)
	})

	t.Run("chart artifacts", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: `path = viz.bar(players, "name", "score", {title: "Scores"}); print(path);`,
			Bindings: map[string]*table.Table{"players": playersTable(t)},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		require.Len(t, res.Charts, 1)

		chart := res.Charts[0]
		assert.Equal(t, executor.ChartBar, chart.Kind)
		assert.Equal(t, "Scores", chart.Title)
		assert.Zero(t, res.ChartsDropped)

		runDir := filepath.Dir(chart.Path)
		assert.True(t, strings.HasPrefix(filepath.Base(runDir), "run_"))
		assert.Equal(t, cfg.ChartDir, filepath.Dir(runDir))

		f, ferr := os.Open(chart.Path)
		require.NoError(t, ferr)
		defer f.Close()
		_, derr := png.Decode(f)
		assert.NoError(t, derr)
	})

	t.Run("chart cap drops extras", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`for (var i = 0; i < 7; i++) {`,
				`	viz.bar(players, "name", "score", {title: "chart " + i});`,
				`}`,
			}, "\n"),
			Bindings: map[string]*table.Table{"players": playersTable(t)},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Nil(t, res.Error, "hitting the cap is not a failure")
		assert.Len(t, res.Charts, 5)
		assert.Equal(t, 2, res.ChartsDropped)
	})

	t.Run("chart validation failure is descriptive", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code:     `viz.line(players, "score", "goals");`,
			Bindings: map[string]*table.Table{"players": playersTable(t)},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindRuntime, res.Error.Kind)
		assert.Contains(t, res.Error.Message, `"goals"`)
		assert.Empty(t, res.Charts)
	})
}

func TestSandboxBlockedNames(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	blocked := []string{"require", "process", "fetch", "XMLHttpRequest", "setTimeout", "os", "fs", "eval", "Function"}
	for _, name := range blocked {
		t.Run(name, func(t *testing.T) {
			req := executor.ExecutionRequest{Code: fmt.Sprintf("var a = %s;", name)}

			res, err := exec.Execute(context.Background(), req)
			require.NoError(t, err)
			require.NotNil(t, res.Error)
			assert.Equal(t, apperror.KindBlockedName, res.Error.Kind)
			assert.True(t, errors.Is(res.Error, apperror.ErrBlockedName))
			assert.Contains(t, res.Error.Message, name)
			assert.Contains(t, res.Error.Message, "not available")
			assert.Empty(t, res.Tables, "nothing leaks out of a blocked run")
		})
	}

	t.Run("constructor escape", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: `var make = (function () {}).constructor; make("return 1")();`,
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindBlockedName, res.Error.Kind)
	})

	t.Run("generator constructor escape", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: `var make = (function* () {}).constructor; make("yield 1");`,
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindBlockedName, res.Error.Kind)
	})
}

func TestSandboxRowLimits(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.MaxRows = 10
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	t.Run("oversized input is rejected before running", func(t *testing.T) {
		cells := make([]any, 11)
		for i := range cells {
			cells[i] = float64(i)
		}
		big := mustTable(t, []string{"n"}, [][]any{cells})

		req := executor.ExecutionRequest{
			Code:     `print("should never run");`,
			Bindings: map[string]*table.Table{"big": big},
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindResourceLimit, res.Error.Kind)
		assert.Contains(t, res.Error.Message, `input table "big"`)
		assert.Contains(t, res.Error.Message, "limit is 10")
		assert.Empty(t, res.Stdout)
	})

	t.Run("oversized construction fails in place", func(t *testing.T) {
		req := executor.ExecutionRequest{
			Code: strings.Join([]string{
				`var cells = [];`,
				`for (var i = 0; i < 11; i++) cells.push(i);`,
				`big = tbl.fromColumns(["n"], [cells]);`,
				`print("unreachable");`,
			}, "\n"),
		}

		res, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, apperror.KindResourceLimit, res.Error.Kind)
		assert.True(t, errors.Is(res.Error, apperror.ErrResourceLimit))
		assert.Contains(t, res.Error.Message, "limit is 10")
		assert.NotContains(t, res.Stdout, "unreachable")
		assert.Empty(t, res.Tables, "no truncated table is handed back")
	})
}

func TestSandboxTimeout(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.Timeout = 500 * time.Millisecond
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	start := time.Now()
	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
		Code: `print("spinning"); for (;;) {}`,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperror.KindTimeout, res.Error.Kind)
	assert.True(t, errors.Is(res.Error, apperror.ErrTimeout))
	assert.Contains(t, res.Error.Message, "timed out")
	assert.Equal(t, "spinning\n", res.Stdout, "output before the deadline survives")
	assert.Less(t, elapsed, 10*time.Second, "a busy loop cannot hold the host")

	// The executor stays usable after an interrupted run.
	again, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: `print("ok")`})
	require.NoError(t, err)
	require.Nil(t, again.Error)
	assert.Equal(t, "ok\n", again.Stdout)
}

func TestSandboxCancellation(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `for (;;) {}`})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperror.KindTimeout, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "cancelled")
}

func TestSandboxDeterministicRandom(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	req := executor.ExecutionRequest{
		Code: `print(Math.random(), Math.random(), Math.random());`,
	}

	first, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, first.Error)
	second, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, second.Error)

	assert.Equal(t, first.Stdout, second.Stdout, "runs are repeatable")
}

func TestSandboxConcurrentRuns(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	type outcome struct {
		res *executor.ExecutionResult
		err error
	}

	const runs = 8
	outcomes := make([]outcome, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
				Code: fmt.Sprintf(`out = tbl.fromColumns(["n"], [[%d]]); print("run %d");`, i, i),
			})
			outcomes[i] = outcome{res: res, err: err}
		}(i)
	}
	wg.Wait()

	for i, oc := range outcomes {
		require.NoError(t, oc.err, "run %d", i)
		require.NotNil(t, oc.res, "run %d", i)
		require.Nil(t, oc.res.Error, "run %d", i)
		assert.Equal(t, fmt.Sprintf("run %d\n", i), oc.res.Stdout, "each run keeps its own buffer")

		out := oc.res.Tables["out"]
		require.NotNil(t, out, "run %d", i)
		cells, cerr := out.Column("n")
		require.NoError(t, cerr)
		assert.Equal(t, []any{float64(i)}, cells, "each run keeps its own namespace")
	}
}

func TestSandboxReservedBindingName(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	_, err := exec.Execute(context.Background(), executor.ExecutionRequest{
		Code:     `print("never");`,
		Bindings: map[string]*table.Table{"analytics": playersTable(t)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestFixtureScheduleScenario(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.ChartDir = t.TempDir()
	exec := sandbox.New(cfg, testLogger())

	matches := mustTable(t,
		[]string{"home_entity", "away_entity", "period", "home_difficulty", "away_difficulty"},
		[][]any{
			{"X", "Z", "Y"},
			{"Y", "X", "Z"},
			{1.0, 2.0, 3.0},
			{2.0, 3.0, 4.0},
			{4.0, 5.0, 1.0},
		},
	)

	req := executor.ExecutionRequest{
		Code: strings.Join([]string{
			`schedule = analytics.fixtureDifficulty(matches, "X", {lastN: 2});`,
			`viz.bar(schedule, "period", "difficulty", {title: "Upcoming difficulty"});`,
		}, "\n"),
		Bindings: map[string]*table.Table{"matches": matches},
	}

	res, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, res.Error)
	require.Len(t, res.Charts, 1)
	assert.FileExists(t, res.Charts[0].Path)

	schedule := res.Tables["schedule"]
	require.NotNil(t, schedule)
	require.Equal(t, 2, schedule.NumRows())

	periods, perr := schedule.Column("period")
	require.NoError(t, perr)
	assert.Equal(t, []any{1.0, 2.0}, periods, "rows come back in period order")

	difficulty, derr := schedule.Column("difficulty")
	require.NoError(t, derr)
	assert.Equal(t, []any{2.0, 5.0}, difficulty, "difficulty follows the side played")

	isHome, herr := schedule.Column("is_home")
	require.NoError(t, herr)
	assert.Equal(t, []any{true, false}, isHome)

	opponents, oerr := schedule.Column("opponent")
	require.NoError(t, oerr)
	assert.Equal(t, []any{"Y", "Z"}, opponents)
}
