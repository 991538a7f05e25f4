package threads

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Carrier is one slot of the fixed carrier pool. A lightweight thread has to
// be mounted on a carrier while it executes.
type Carrier struct {
	id      int
	name    string
	mounted atomic.Pointer[Thread]
	mounts  atomic.Uint64
}

// ID returns the carrier index, starting at 1.
func (c *Carrier) ID() int { return c.id }

// Name returns the carrier name, e.g. "carrier-3".
func (c *Carrier) Name() string { return c.name }

// Mounted returns the thread currently running on the carrier, if any.
func (c *Carrier) Mounted() *Thread { return c.mounted.Load() }

// Mounts returns how many times a thread was mounted on this carrier.
func (c *Carrier) Mounts() uint64 { return c.mounts.Load() }

// CarrierPool is a fixed-size set of carriers. Requests beyond capacity wait
// in FIFO order and a released carrier is handed straight to the oldest
// waiter. The pool is never resized.
type CarrierPool struct {
	carriers []*Carrier

	mu      sync.Mutex
	idle    []*Carrier
	waiters *queue.Queue // chan *Carrier
	busy    int
	closed  bool

	// Statistics
	stats struct {
		mounts    atomic.Uint64
		waits     atomic.Uint64
		parks     atomic.Uint64
		highWater atomic.Int64
	}
}

// NewCarrierPool creates a pool of size carriers.
func NewCarrierPool(size int) (*CarrierPool, error) {
	if size <= 0 {
		return nil, &ConfigurationError{Field: "carriers", Value: size, Reason: "must be positive"}
	}

	p := &CarrierPool{
		carriers: make([]*Carrier, size),
		idle:     make([]*Carrier, 0, size),
		waiters:  queue.New(),
	}
	for i := 0; i < size; i++ {
		p.carriers[i] = &Carrier{id: i + 1, name: fmt.Sprintf("carrier-%d", i+1)}
	}
	// idle is a stack; push in reverse so carrier-1 is handed out first
	for i := size - 1; i >= 0; i-- {
		p.idle = append(p.idle, p.carriers[i])
	}
	return p, nil
}

// acquire takes an idle carrier or waits for one.
func (p *CarrierPool) acquire() (*Carrier, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.busy++
		p.updateHighWater(p.busy)
		p.mu.Unlock()
		p.stats.mounts.Add(1)
		return c, nil
	}

	ch := make(chan *Carrier, 1)
	p.waiters.Add(ch)
	p.mu.Unlock()
	p.stats.waits.Add(1)

	c, ok := <-ch
	if !ok {
		return nil, ErrPoolClosed
	}
	p.stats.mounts.Add(1)
	return c, nil
}

// release returns c to the pool, handing it to the oldest waiter if any.
func (p *CarrierPool) release(c *Carrier) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waiters.Length() > 0 {
		ch := p.waiters.Remove().(chan *Carrier)
		ch <- c
		return
	}
	p.idle = append(p.idle, c)
	p.busy--
}

func (p *CarrierPool) updateHighWater(busy int) {
	for {
		hw := p.stats.highWater.Load()
		if int64(busy) <= hw || p.stats.highWater.CompareAndSwap(hw, int64(busy)) {
			return
		}
	}
}

// Close fails every queued and future mount. Carriers already handed out
// can still be released.
func (p *CarrierPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for p.waiters.Length() > 0 {
		close(p.waiters.Remove().(chan *Carrier))
	}
}

// Size returns the fixed number of carriers.
func (p *CarrierPool) Size() int {
	return len(p.carriers)
}

// Carriers returns the carriers in id order.
func (p *CarrierPool) Carriers() []*Carrier {
	out := make([]*Carrier, len(p.carriers))
	copy(out, p.carriers)
	return out
}

// Stats returns pool statistics
func (p *CarrierPool) Stats() CarrierPoolStats {
	p.mu.Lock()
	busy, queued := p.busy, p.waiters.Length()
	p.mu.Unlock()

	return CarrierPoolStats{
		Size:      len(p.carriers),
		Busy:      busy,
		Queued:    queued,
		HighWater: int(p.stats.highWater.Load()),
		Mounts:    p.stats.mounts.Load(),
		Waits:     p.stats.waits.Load(),
		Parks:     p.stats.parks.Load(),
	}
}

// CarrierPoolStats contains pool statistics
type CarrierPoolStats struct {
	Size      int    `json:"size"`
	Busy      int    `json:"busy"`
	Queued    int    `json:"queued"`
	HighWater int    `json:"high_water"`
	Mounts    uint64 `json:"mounts"`
	Waits     uint64 `json:"waits"`
	Parks     uint64 `json:"parks"`
}
