// Package sandbox runs untrusted analysis scripts inside an embedded
// JavaScript interpreter. Scripts see a restricted namespace: the caller's
// input tables, the analytics and chart helpers, and a small set of safe
// builtins. There is no module system, no filesystem or network access,
// and no timer or dynamic-eval surface; touching any of those names
// raises a clear error inside the script.
//
// Execution failures are soft: the returned result carries the error
// classification together with whatever stdout, tables, and charts the
// script completed before failing. A non-nil Go error is reserved for
// host-side faults such as an unwritable chart directory.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/xid"

	"github.com/sakif/analysis-sandbox/internal/apperror"
	"github.com/sakif/analysis-sandbox/internal/executor"
	"github.com/sakif/analysis-sandbox/internal/observability"
)

// scriptName is the synthetic source name scripts see in stack traces.
const scriptName = "analysis.js"

// Executor implements the executor.Executor interface using an in-process
// interpreter.
type Executor struct {
	config Config
	logger *slog.Logger
}

var _ executor.Executor = (*Executor)(nil)

// New creates a new sandbox Executor.
func New(cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		config: cfg,
		logger: logger,
	}
}

// Execute runs one script against the request's input tables and always
// returns an assembled result; req-level failures land in the result's
// Error field, never in the second return value.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()
	runID := "run_" + xid.New().String()
	res := &executor.ExecutionResult{}

	if ctx.Err() != nil {
		res.Error = apperror.Cancelled()
		return e.finish(runID, res, start), nil
	}
	if strings.TrimSpace(req.Code) == "" {
		res.Error = apperror.Compile("empty code string")
		return e.finish(runID, res, start), nil
	}
	for name, t := range req.Bindings {
		if t.NumRows() > e.config.MaxRows {
			res.Error = apperror.ResourceLimit(fmt.Sprintf(
				"input table %q has %d rows, limit is %d", name, t.NumRows(), e.config.MaxRows))
			return e.finish(runID, res, start), nil
		}
	}

	program, err := goja.Compile(scriptName, req.Code, false)
	if err != nil {
		res.Error = apperror.Compile(firstLine(err.Error()))
		return e.finish(runID, res, start), nil
	}

	runDir, err := e.makeRunDir(runID)
	if err != nil {
		return nil, err
	}
	sess, err := newSession(e.config, req.Bindings, runDir)
	if err != nil {
		return nil, fmt.Errorf("build script namespace: %w", err)
	}

	done := make(chan error)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("interpreter panic: %v", r)
			}
		}()
		_, runErr := sess.vm.RunProgram(program)
		done <- runErr
	}()

	timer := time.NewTimer(e.config.Timeout)
	defer timer.Stop()

	var runErr error
	select {
	case runErr = <-done:
	case <-timer.C:
		sess.vm.Interrupt(apperror.Timeout(e.config.Timeout))
		runErr = <-done
	case <-ctx.Done():
		sess.vm.Interrupt(apperror.Cancelled())
		runErr = <-done
	}
	// The VM is reused by the assembler below; a sticky interrupt flag
	// would abort its property reads.
	sess.vm.ClearInterrupt()

	res.Error = classify(runErr)
	sess.assemble(res)
	return e.finish(runID, res, start), nil
}

func (e *Executor) makeRunDir(runID string) (string, error) {
	parent := e.config.ChartDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// finish stamps the duration and records the run in logs and metrics.
func (e *Executor) finish(runID string, res *executor.ExecutionResult, start time.Time) *executor.ExecutionResult {
	res.Duration = time.Since(start)

	status := "ok"
	if res.Error != nil {
		status = res.Error.Kind
	}
	observability.RunsTotal.WithLabelValues(status).Inc()
	observability.RunDuration.Observe(res.Duration.Seconds())
	observability.ChartsRendered.Add(float64(len(res.Charts)))

	e.logger.Info("script run finished",
		slog.String("run_id", runID),
		slog.String("status", status),
		slog.Duration("duration", res.Duration),
		slog.Int("tables", len(res.Tables)),
		slog.Int("charts", len(res.Charts)),
		slog.Int("charts_dropped", res.ChartsDropped),
	)
	return res
}

// classify maps an interpreter error onto the execution error taxonomy.
func classify(err error) *apperror.ExecError {
	if err == nil {
		return nil
	}

	var execErr *apperror.ExecError
	if errors.As(err, &execErr) {
		return execErr
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ee, ok := interrupted.Value().(*apperror.ExecError); ok {
			return ee
		}
		return apperror.Runtime("execution interrupted", fmt.Sprint(interrupted.Value()))
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return apperror.ResourceLimit("call stack depth limit exceeded")
	}

	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return apperror.Compile(firstLine(syntax.Error()))
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		if ee := thrownExecError(exception.Value()); ee != nil {
			return ee
		}
		return apperror.Runtime(firstLine(exception.Value().String()), exception.String())
	}

	return apperror.Runtime(firstLine(err.Error()), err.Error())
}

// thrownExecError digs a Go error out of a thrown value. Native helpers
// surface failures as error objects carrying the original Go error under
// the "value" key.
func thrownExecError(v goja.Value) *apperror.ExecError {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	wrapped := obj.Get("value")
	if wrapped == nil {
		return nil
	}
	cause, ok := wrapped.Export().(error)
	if !ok {
		return nil
	}
	var ee *apperror.ExecError
	if errors.As(cause, &ee) {
		return ee
	}
	return apperror.Runtime(firstLine(cause.Error()), "")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
