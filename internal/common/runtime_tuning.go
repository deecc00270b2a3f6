package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// The engine keeps a few hundred snapshots in memory and allocates mostly
// per request, so a moderately relaxed GC is enough.
const (
	defaultGOGC     = 200
	defaultMemLimit = 2 * 1024 * 1024 * 1024
)

type RuntimeSettings struct {
	GOGC       int
	MemLimit   int64
	GOMAXPROCS int
}

// DefaultRuntimeSettings sizes GOMAXPROCS to the host, leaving a core to
// the OS on small machines.
func DefaultRuntimeSettings(numCPU int) RuntimeSettings {
	procs := numCPU
	if numCPU > 2 {
		procs = numCPU - 1
	}
	if procs < 1 {
		procs = 1
	}
	return RuntimeSettings{GOGC: defaultGOGC, MemLimit: defaultMemLimit, GOMAXPROCS: procs}
}

// InitRuntime applies DefaultRuntimeSettings for every knob not already set
// through GOGC, GOMEMLIMIT or GOMAXPROCS.
func InitRuntime() RuntimeSettings {
	s := DefaultRuntimeSettings(runtime.NumCPU())

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(s.GOGC)
	} else {
		s.GOGC = debug.SetGCPercent(-1)
		debug.SetGCPercent(s.GOGC)
	}
	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(s.MemLimit)
	} else {
		s.MemLimit = debug.SetMemoryLimit(-1)
	}
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(s.GOMAXPROCS)
	} else {
		s.GOMAXPROCS = runtime.GOMAXPROCS(0)
	}

	log.Info().
		Int("gogc", s.GOGC).
		Int64("gomemlimit_bytes", s.MemLimit).
		Int("gomaxprocs", s.GOMAXPROCS).
		Int("num_cpu", runtime.NumCPU()).
		Str("go_version", runtime.Version()).
		Msg("[runtime] settings applied")
	return s
}
