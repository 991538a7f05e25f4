package threads

import (
	"log/slog"
	"runtime"
)

// Thread priority hints. Lightweight threads always run at NormPriority.
const (
	MinPriority  = 1
	NormPriority = 5
	MaxPriority  = 10
)

// Mode names used in creation events.
const (
	ModeVirtual  = "VirtualThread"
	ModePlatform = "Thread"
)

// Options is the immutable configuration of a Service. It is copied by New
// and never consulted again afterwards.
type Options struct {
	// Virtual selects lightweight threads multiplexed onto the carrier pool.
	// When false every thread is pinned to its own OS thread.
	Virtual bool

	// Carriers sizes the carrier pool. Must be positive; use DefaultCarriers
	// for the processor count.
	Carriers int

	// Logger receives one event per created thread. Nil discards.
	Logger *slog.Logger

	// Observer is an optional instrumentation hook.
	Observer Observer
}

// DefaultCarriers returns the number of processors available at startup.
func DefaultCarriers() int {
	return runtime.NumCPU()
}

func (o Options) mode() string {
	if o.Virtual {
		return ModeVirtual
	}
	return ModePlatform
}
