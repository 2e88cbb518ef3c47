// Package observability holds the process-wide instrumentation for script
// runs. Collectors register on the default registry at package load; how
// and whether they are exposed is the embedding process' concern.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RunsTotal counts finished script runs by terminal status: "ok" or
	// the error kind.
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_runs_total",
		Help: "Finished script runs by terminal status.",
	}, []string{"status"})

	// RunDuration tracks wall-clock run time, including assembly.
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_run_duration_seconds",
		Help:    "Wall-clock duration of script runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 13),
	})

	// ChartsRendered counts chart files kept across all runs.
	ChartsRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_charts_rendered_total",
		Help: "Chart files produced across all runs.",
	})
)

func init() {
	prometheus.MustRegister(RunsTotal, RunDuration, ChartsRendered)
}
