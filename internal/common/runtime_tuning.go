package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Runtime profiles by core count. Quotes allocate short-lived uint256 values
// from sync pools, so a high GOGC keeps the pools warm and GOMEMLIMIT bounds
// the heap instead.
const (
	SmallServerGOGC     = 400
	SmallServerMemLimit = 1 * 1024 * 1024 * 1024

	MediumServerGOGC     = 600
	MediumServerMemLimit = 4 * 1024 * 1024 * 1024

	LargeServerGOGC     = 800
	LargeServerMemLimit = 8 * 1024 * 1024 * 1024
)

func detectServerProfile(numCPU int) (gogc int, memLimit int64, maxProcs int) {
	switch {
	case numCPU <= 2:
		return SmallServerGOGC, SmallServerMemLimit, 1
	case numCPU <= 8:
		return MediumServerGOGC, MediumServerMemLimit, numCPU - 1
	default:
		return LargeServerGOGC, LargeServerMemLimit, numCPU - 2
	}
}

// TuneRuntime applies the detected profile. GOGC, GOMAXPROCS and GOMEMLIMIT
// set in the environment win over the profile.
func TuneRuntime() {
	gogc, memLimit, maxProcs := detectServerProfile(runtime.NumCPU())

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(gogc)
	}
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(maxProcs)
	}
	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(memLimit)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Int("gogc", gogc).
		Int64("gomemlimit_bytes", memLimit).
		Uint64("heap_alloc_mb", memStats.HeapAlloc/1024/1024).
		Str("go_version", runtime.Version()).
		Msg("[runtime] settings applied")
}
