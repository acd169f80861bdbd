// Package workers derives worker pool sizes from the available CPUs.
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the worker count for a task with the given CPU multiplier,
// capped at limit (0 means no cap). GOMAXPROCS reflects container CPU
// limits on Go 1.19+, so the result respects cgroup quotas.
//
// The SCAN_WORKERS environment variable overrides the computed value.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("SCAN_WORKERS"); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			if limit > 0 && n > limit {
				return limit
			}
			return n
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForIO returns the worker count for I/O-bound work (2 per CPU).
// Metadata extraction spends most of its time waiting on the external
// probe process, so it gets the I/O sizing.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForCPU returns the worker count for CPU-bound work (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
