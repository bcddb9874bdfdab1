package workers

import (
	"os"
	"runtime"
	"strconv"

	"media-library/internal/logging"
)

// Environment overrides.
const (
	// EnvIndexWorkers overrides the CPU-scaled counts returned by Count.
	EnvIndexWorkers = "INDEX_WORKERS"
	// EnvFastThumbWorkers pins the fast thumbnail pool size.
	EnvFastThumbWorkers = "FAST_THUMB_WORKERS"
	// EnvQualityThumbWorkers pins the quality thumbnail pool size.
	EnvQualityThumbWorkers = "QUALITY_THUMB_WORKERS"
)

// Default fixed pool sizes for the thumbnail request manager.
const (
	DefaultFastWorkers    = 3
	DefaultQualityWorkers = 2
)

// Count returns the number of workers for a task type, scaled from
// GOMAXPROCS (which respects container CPU limits).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
// INDEX_WORKERS overrides the computed value.
func Count(multiplier float64, limit int) int {
	if count, ok := envCount(EnvIndexWorkers); ok {
		if limit > 0 && count > limit {
			return limit
		}
		return count
	}

	available := runtime.GOMAXPROCS(0)
	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Size returns a fixed pool size: the positive integer in envVar if set,
// otherwise def. Unlike Count it does not scale with CPUs.
func Size(envVar string, def int) int {
	if count, ok := envCount(envVar); ok {
		return count
	}
	return def
}

// FastPool is the fast thumbnail pool size.
func FastPool() int {
	return Size(EnvFastThumbWorkers, DefaultFastWorkers)
}

// QualityPool is the quality thumbnail pool size.
func QualityPool() int {
	return Size(EnvQualityThumbWorkers, DefaultQualityWorkers)
}

func envCount(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	count, err := strconv.Atoi(v)
	if err != nil || count <= 0 {
		logging.Warn("Ignoring invalid %s=%q", name, v)
		return 0, false
	}
	return count, true
}
