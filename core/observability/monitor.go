package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMonitor records per-handler latency and error counts
type PerformanceMonitor struct {
	enabled  atomic.Bool
	handlers sync.Map
	global   struct {
		totalRequests atomic.Uint64
		totalDuration atomic.Uint64
	}
	bottlenecks  []Bottleneck
	bottleneckMu sync.RWMutex
	stop         chan struct{}
	stopOnce     sync.Once
}

// HandlerMetrics stores per-handler metrics
type HandlerMetrics struct {
	Name           string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [10]atomic.Uint64
}

// LatencyBounds are the upper bounds of the latency buckets; the last bucket
// is unbounded.
var LatencyBounds = [9]time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	5 * time.Second,
	10 * time.Second,
}

// HandlerSnapshot is a point-in-time copy of HandlerMetrics.
type HandlerSnapshot struct {
	Name    string        `json:"name"`
	Count   uint64        `json:"count"`
	Errors  uint64        `json:"errors"`
	Avg     time.Duration `json:"avg_ns"`
	Min     time.Duration `json:"min_ns"`
	Max     time.Duration `json:"max_ns"`
	Buckets [10]uint64    `json:"buckets"`
}

// Bottleneck represents a performance issue
type Bottleneck struct {
	Type       string
	Location   string
	Severity   int
	Impact     float64
	DetectedAt time.Time
	Details    string
}

// NewPerformanceMonitor creates a monitor. Call Close to stop its
// background analysis.
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{stop: make(chan struct{})}
	pm.enabled.Store(true)
	go pm.analyzeBottlenecks(10 * time.Second)
	return pm
}

// SetEnabled turns recording on or off.
func (pm *PerformanceMonitor) SetEnabled(on bool) {
	pm.enabled.Store(on)
}

// RecordRequest records a request
func (pm *PerformanceMonitor) RecordRequest(handler string, duration time.Duration, isError bool) {
	if !pm.enabled.Load() {
		return
	}

	val, _ := pm.handlers.LoadOrStore(handler, &HandlerMetrics{Name: handler})
	metrics := val.(*HandlerMetrics)

	metrics.Count.Add(1)
	if isError {
		metrics.Errors.Add(1)
	}

	durationNs := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(durationNs)
	updateMinMax(metrics, durationNs)
	metrics.latencyBuckets[bucketFor(duration)].Add(1)

	pm.global.totalRequests.Add(1)
	pm.global.totalDuration.Add(durationNs)
}

func updateMinMax(m *HandlerMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

func bucketFor(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d < bound {
			return i
		}
	}
	return len(LatencyBounds)
}

// Handler returns a snapshot of one handler's metrics.
func (pm *PerformanceMonitor) Handler(name string) (HandlerSnapshot, bool) {
	val, ok := pm.handlers.Load(name)
	if !ok {
		return HandlerSnapshot{}, false
	}
	return snapshot(val.(*HandlerMetrics)), true
}

// Snapshot returns every handler's metrics sorted by name.
func (pm *PerformanceMonitor) Snapshot() []HandlerSnapshot {
	var out []HandlerSnapshot
	pm.handlers.Range(func(_, value any) bool {
		out = append(out, snapshot(value.(*HandlerMetrics)))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TotalRequests returns the number of recorded requests.
func (pm *PerformanceMonitor) TotalRequests() uint64 {
	return pm.global.totalRequests.Load()
}

func snapshot(m *HandlerMetrics) HandlerSnapshot {
	s := HandlerSnapshot{
		Name:   m.Name,
		Count:  m.Count.Load(),
		Errors: m.Errors.Load(),
		Min:    time.Duration(m.MinDuration.Load()),
		Max:    time.Duration(m.MaxDuration.Load()),
	}
	if s.Count > 0 {
		s.Avg = time.Duration(m.TotalDuration.Load() / s.Count)
	}
	for i := range m.latencyBuckets {
		s.Buckets[i] = m.latencyBuckets[i].Load()
	}
	return s
}

func (pm *PerformanceMonitor) analyzeBottlenecks(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-pm.stop:
			return
		case <-ticker.C:
		}
		if !pm.enabled.Load() {
			continue
		}
		bottlenecks := pm.detectBottlenecks()
		pm.bottleneckMu.Lock()
		pm.bottlenecks = bottlenecks
		pm.bottleneckMu.Unlock()
	}
}

// detectBottlenecks flags slow handlers and handlers with a high error
// rate. Blocking endpoints are expected to be slow; the latency threshold
// only catches outliers above one second.
func (pm *PerformanceMonitor) detectBottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	pm.handlers.Range(func(key, value any) bool {
		m := value.(*HandlerMetrics)
		count := m.Count.Load()
		if count == 0 {
			return true
		}

		avgDuration := time.Duration(m.TotalDuration.Load() / count)

		if avgDuration > 1500*time.Millisecond {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "latency",
				Location:   m.Name,
				Severity:   8,
				Impact:     100.0,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("High latency (%v avg)", avgDuration),
			})
		}

		errors := m.Errors.Load()
		if errors > 0 && float64(errors)/float64(count) > 0.05 {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "errors",
				Location:   m.Name,
				Severity:   10,
				Impact:     float64(errors) / float64(count) * 100,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("%.1f%% error rate", float64(errors)/float64(count)*100),
			})
		}

		return true
	})

	return bottlenecks
}

// GetBottlenecks returns detected bottlenecks
func (pm *PerformanceMonitor) GetBottlenecks() []Bottleneck {
	pm.bottleneckMu.RLock()
	defer pm.bottleneckMu.RUnlock()
	return append([]Bottleneck{}, pm.bottlenecks...)
}

// StartTrace starts timing
func (pm *PerformanceMonitor) StartTrace() int64 {
	if !pm.enabled.Load() {
		return 0
	}
	return time.Now().UnixNano()
}

// EndTrace ends timing and records
func (pm *PerformanceMonitor) EndTrace(handler string, startTime int64, isError bool) {
	if startTime == 0 {
		return
	}
	duration := time.Duration(time.Now().UnixNano() - startTime)
	pm.RecordRequest(handler, duration, isError)
}

// Close stops background analysis.
func (pm *PerformanceMonitor) Close() {
	pm.stopOnce.Do(func() { close(pm.stop) })
}
