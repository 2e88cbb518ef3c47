package sandbox

import (
	"time"
)

// Config holds the configuration for sandboxed script execution.
type Config struct {
	// Timeout is the wall-clock budget for one script run.
	Timeout time.Duration
	// MaxRows is the largest row count accepted for any input or produced
	// table.
	MaxRows int
	// MaxCharts is the number of chart files kept from one run; renders
	// past the cap are dropped and counted.
	MaxCharts int
	// ChartDir is the parent directory for per-run output directories.
	// Empty means the system temp directory.
	ChartDir string
}

// DefaultConfig provides sensible defaults for analysis scripts.
func DefaultConfig() Config {
	return Config{
		// 30 second default budget
		Timeout:   30 * time.Second,
		MaxRows:   100_000,
		MaxCharts: 5,
		ChartDir:  "",
	}
}
