package executor

import (
	"context"
	"time"

	"github.com/sakif/analysis-sandbox/internal/apperror"
	"github.com/sakif/analysis-sandbox/internal/table"
)

// Chart kinds as recorded on artifacts.
const (
	ChartLine       = "line"
	ChartBar        = "bar"
	ChartHeatmap    = "heatmap"
	ChartComparison = "comparison"
)

// ExecutionRequest represents one script to run against a set of named
// input tables. Binding names become read-only globals in the script's
// namespace.
type ExecutionRequest struct {
	Code     string                  `json:"code"`
	Bindings map[string]*table.Table `json:"-"`
}

// ChartArtifact describes one chart image written during a run.
type ChartArtifact struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
}

// ExecutionResult carries everything a run produced. Failures are part of
// the result, not a transport error: Error is set alongside whatever
// stdout, tables, and charts were completed before the failure.
type ExecutionResult struct {
	Stdout        string                  `json:"stdout"`
	Tables        map[string]*table.Table `json:"tables,omitempty"`
	Charts        []ChartArtifact         `json:"charts,omitempty"`
	ChartsDropped int                     `json:"chartsDropped,omitempty"`
	Error         *apperror.ExecError     `json:"error,omitempty"`
	Duration      time.Duration           `json:"duration"`
}

// Executor represents the core interface for running code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
