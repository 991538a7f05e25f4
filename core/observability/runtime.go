package observability

import (
	"runtime"
	"runtime/pprof"
	"time"
)

// RuntimeStats describes the Go runtime underneath the thread service. In
// platform mode OSThreads grows with every retired request thread.
type RuntimeStats struct {
	GOMAXPROCS   int           `json:"gomaxprocs"`
	NumCPU       int           `json:"num_cpu"`
	NumGoroutine int           `json:"goroutines"`
	OSThreads    int           `json:"os_threads_created"`
	NumGC        uint32        `json:"num_gc"`
	PauseTotal   time.Duration `json:"gc_pause_total_ns"`
	LastPause    time.Duration `json:"gc_last_pause_ns"`
	HeapAlloc    uint64        `json:"heap_alloc_bytes"`
	Sys          uint64        `json:"sys_bytes"`
}

// ReadRuntimeStats returns current runtime statistics. It stops the world
// briefly to read memory statistics.
func ReadRuntimeStats() RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := RuntimeStats{
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		NumGC:        ms.NumGC,
		PauseTotal:   time.Duration(ms.PauseTotalNs),
		HeapAlloc:    ms.HeapAlloc,
		Sys:          ms.Sys,
	}
	if p := pprof.Lookup("threadcreate"); p != nil {
		stats.OSThreads = p.Count()
	}
	if ms.NumGC > 0 {
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
	}
	return stats
}
