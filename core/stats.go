package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/searchktools/loom-server/core/http"
	"github.com/searchktools/loom-server/core/pools"
	"github.com/searchktools/loom-server/core/threads"
)

// Stats represents engine and thread statistics
type Stats struct {
	Threads     threads.Stats        `json:"threads"`
	Factories   []FactoryStats       `json:"factories"`
	Requests    RequestStats         `json:"requests"`
	ContextPool pools.SmartPoolStats `json:"context_pool"`
	Routes      int                  `json:"routes"`
}

type FactoryStats struct {
	Prefix  string `json:"prefix"`
	Daemon  bool   `json:"daemon"`
	Created uint64 `json:"created"`
}

type RequestStats struct {
	Total       uint64 `json:"total"`
	Rejected    uint64 `json:"rejected"`
	NotFound    uint64 `json:"not_found"`
	Panics      uint64 `json:"panics"`
	Interrupted uint64 `json:"interrupted"`
}

// GetStats returns engine statistics
func (e *Engine) GetStats() Stats {
	requests := RequestStats{
		Total:       e.stats.requests.Load(),
		Rejected:    e.stats.rejected.Load(),
		NotFound:    e.stats.notFound.Load(),
		Panics:      e.stats.panics.Load(),
		Interrupted: e.stats.interrupts.Load(),
	}
	factories := []FactoryStats{factoryStats(e.workers), factoryStats(e.tasks)}

	return Stats{
		Threads:     e.svc.Stats(),
		Factories:   factories,
		Requests:    requests,
		ContextPool: http.PoolStats(),
		Routes:      e.router.Len(),
	}
}

func factoryStats(f *threads.Factory) FactoryStats {
	return FactoryStats{Prefix: f.Prefix(), Daemon: f.Daemon(), Created: f.Count()}
}

// GetStatsJSON returns statistics as JSON string
func (e *Engine) GetStatsJSON() string {
	data, _ := json.MarshalIndent(e.GetStats(), "", "  ")
	return string(data)
}

// GetStatsText returns statistics as human-readable text
func (e *Engine) GetStatsText() string {
	s := e.GetStats()
	c := s.Threads.Carriers

	var b strings.Builder
	fmt.Fprintf(&b, `Thread Statistics
=================

Mode:      %s
Created:   %d
Live:      %d

Carriers:
  Size:       %d
  Busy:       %d
  Queued:     %d
  High Water: %d
  Mounts:     %d
  Parks:      %d

Factories:
`,
		s.Threads.Mode, s.Threads.Created, s.Threads.Live,
		c.Size, c.Busy, c.Queued, c.HighWater, c.Mounts, c.Parks,
	)
	for _, f := range s.Factories {
		fmt.Fprintf(&b, "  %-10s daemon=%-5t created=%d\n", f.Prefix, f.Daemon, f.Created)
	}
	fmt.Fprintf(&b, `
Requests:
  Total:       %d
  Rejected:    %d
  Not Found:   %d
  Panics:      %d
  Interrupted: %d

Context Pool:
  Gets:     %d
  Puts:     %d
  Hit Rate: %.2f%%
`,
		s.Requests.Total, s.Requests.Rejected, s.Requests.NotFound,
		s.Requests.Panics, s.Requests.Interrupted,
		s.ContextPool.Gets, s.ContextPool.Puts, s.ContextPool.HitRate*100,
	)
	return b.String()
}
