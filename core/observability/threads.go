package observability

import (
	"errors"
	"sync/atomic"

	"github.com/searchktools/loom-server/core/threads"
)

// ThreadMonitor is a threads.Observer that keeps creation and carrier
// occupancy counters.
type ThreadMonitor struct {
	created    atomic.Uint64
	terminated atomic.Uint64
	failed     atomic.Uint64
	panicked   atomic.Uint64
	mounted    atomic.Int64
	maxMounted atomic.Int64
	mounts     atomic.Uint64
}

var _ threads.Observer = (*ThreadMonitor)(nil)

// NewThreadMonitor creates a thread monitor.
func NewThreadMonitor() *ThreadMonitor {
	return &ThreadMonitor{}
}

func (m *ThreadMonitor) ThreadCreated(_ *threads.Thread, _ uint64) {
	m.created.Add(1)
}

func (m *ThreadMonitor) CarrierMounted(_ *threads.Carrier, _ *threads.Thread) {
	m.mounts.Add(1)
	n := m.mounted.Add(1)
	for {
		max := m.maxMounted.Load()
		if n <= max || m.maxMounted.CompareAndSwap(max, n) {
			return
		}
	}
}

func (m *ThreadMonitor) CarrierUnmounted(_ *threads.Carrier, _ *threads.Thread) {
	m.mounted.Add(-1)
}

func (m *ThreadMonitor) ThreadTerminated(_ *threads.Thread, err error) {
	m.terminated.Add(1)
	if err == nil {
		return
	}
	m.failed.Add(1)
	var pe *threads.PanicError
	if errors.As(err, &pe) {
		m.panicked.Add(1)
	}
}

// Snapshot returns the current counters.
func (m *ThreadMonitor) Snapshot() ThreadSnapshot {
	return ThreadSnapshot{
		Created:    m.created.Load(),
		Terminated: m.terminated.Load(),
		Failed:     m.failed.Load(),
		Panicked:   m.panicked.Load(),
		Mounted:    m.mounted.Load(),
		MaxMounted: m.maxMounted.Load(),
		Mounts:     m.mounts.Load(),
	}
}

// ThreadSnapshot is a point-in-time copy of ThreadMonitor.
type ThreadSnapshot struct {
	Created    uint64 `json:"created"`
	Terminated uint64 `json:"terminated"`
	Failed     uint64 `json:"failed"`
	Panicked   uint64 `json:"panicked"`
	Mounted    int64  `json:"mounted"`
	MaxMounted int64  `json:"max_mounted"`
	Mounts     uint64 `json:"mounts"`
}
