// Package pools provides object pools with hit-rate statistics.
package pools

import (
	"sync"
	"sync/atomic"
	"time"
)

// SmartPool is a typed object pool with warmup and statistics
type SmartPool[T any] struct {
	pool      sync.Pool
	newFunc   func() T
	resetFunc func(T)

	// Statistics
	gets      atomic.Uint64
	puts      atomic.Uint64
	news      atomic.Uint64
	startTime time.Time

	warmupSize    int
	targetHitRate float64
}

// SmartPoolConfig configures a smart pool
type SmartPoolConfig[T any] struct {
	New           func() T
	Reset         func(T)
	WarmupSize    int     // Number of objects to pre-allocate
	TargetHitRate float64 // Target cache hit rate (0.0-1.0)
}

// NewSmartPool creates a new smart pool with configuration
func NewSmartPool[T any](config SmartPoolConfig[T]) *SmartPool[T] {
	if config.WarmupSize == 0 {
		config.WarmupSize = 64
	}
	if config.TargetHitRate == 0 {
		config.TargetHitRate = 0.90
	}

	sp := &SmartPool[T]{
		newFunc:       config.New,
		resetFunc:     config.Reset,
		warmupSize:    config.WarmupSize,
		targetHitRate: config.TargetHitRate,
		startTime:     time.Now(),
	}
	sp.pool.New = func() any {
		sp.news.Add(1)
		return sp.newFunc()
	}

	sp.warmup(sp.warmupSize)
	return sp
}

// Get acquires an object from the pool
func (sp *SmartPool[T]) Get() T {
	sp.gets.Add(1)
	return sp.pool.Get().(T)
}

// Put resets obj and returns it to the pool
func (sp *SmartPool[T]) Put(obj T) {
	sp.puts.Add(1)
	if sp.resetFunc != nil {
		sp.resetFunc(obj)
	}
	sp.pool.Put(obj)
}

func (sp *SmartPool[T]) warmup(n int) {
	for i := 0; i < n; i++ {
		sp.pool.Put(sp.newFunc())
	}
}

// Stats returns pool statistics
func (sp *SmartPool[T]) Stats() SmartPoolStats {
	gets := sp.gets.Load()
	puts := sp.puts.Load()
	news := sp.news.Load()

	// Objects served from the pool rather than newly created
	hitRate := 0.0
	if gets > news {
		hitRate = float64(gets-news) / float64(gets)
	}

	return SmartPoolStats{
		Gets:      gets,
		Puts:      puts,
		News:      news,
		HitRate:   hitRate,
		Uptime:    time.Since(sp.startTime),
		ReuseRate: float64(puts) / float64(gets+1),
	}
}

// SmartPoolStats contains smart pool statistics
type SmartPoolStats struct {
	Gets      uint64        `json:"gets"`
	Puts      uint64        `json:"puts"`
	News      uint64        `json:"news"`
	HitRate   float64       `json:"hit_rate"`
	Uptime    time.Duration `json:"uptime_ns"`
	ReuseRate float64       `json:"reuse_rate"`
}

// Optimize warms up more objects when the hit rate is below target. It
// returns the number of objects added.
func (sp *SmartPool[T]) Optimize() int {
	stats := sp.Stats()
	if stats.HitRate >= sp.targetHitRate || stats.Gets <= 1000 {
		return 0
	}
	n := sp.warmupSize / 10
	sp.warmup(n)
	return n
}
