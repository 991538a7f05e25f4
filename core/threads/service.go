package threads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Service creates threads under one immutable scheduling mode. In virtual
// mode threads are multiplexed onto a fixed carrier pool; in platform mode
// each thread gets its own OS thread.
type Service struct {
	virtual  bool
	mode     string
	carriers *CarrierPool
	log      *slog.Logger
	observer Observer

	created atomic.Uint64
	nextID  atomic.Uint64

	mu      sync.Mutex
	closed  bool
	live    int           // started non-daemon threads still running
	drained chan struct{} // closed while live == 0
}

// New creates a service. The carrier pool is built here and keeps its size
// for the lifetime of the service.
func New(opts Options) (*Service, error) {
	pool, err := NewCarrierPool(opts.Carriers)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	drained := make(chan struct{})
	close(drained)

	s := &Service{
		virtual:  opts.Virtual,
		mode:     opts.mode(),
		carriers: pool,
		log:      logger,
		observer: observer,
		drained:  drained,
	}
	logger.Debug("thread service configured",
		"mode", s.mode,
		"carriers", pool.Size(),
	)
	return s, nil
}

// Virtual reports whether the service creates lightweight threads.
func (s *Service) Virtual() bool { return s.virtual }

// Mode returns ModeVirtual or ModePlatform.
func (s *Service) Mode() string { return s.mode }

// Carriers returns the carrier pool.
func (s *Service) Carriers() *CarrierPool { return s.carriers }

// Created returns how many threads this service has created.
func (s *Service) Created() uint64 { return s.created.Load() }

// Create creates and starts a non-daemon thread named name at normal priority.
func (s *Service) Create(task Task, name string) (*Thread, error) {
	return s.CreateWith(task, name, NormPriority, false)
}

// CreateWith creates and starts a thread with an explicit priority hint and
// daemon status. A daemon thread is not waited for by Wait.
func (s *Service) CreateWith(task Task, name string, priority int, daemon bool) (*Thread, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, priority)
	}
	t, err := s.build(task, name, priority, daemon)
	if err != nil {
		return nil, err
	}
	if err := t.Start(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewFactory returns a factory producing unstarted threads named
// "<prefix>-1", "<prefix>-2", ...
func (s *Service) NewFactory(prefix string, daemon bool) *Factory {
	return &Factory{svc: s, prefix: prefix, daemon: daemon}
}

// build is the creation path shared by Create and Factory.
func (s *Service) build(task Task, name string, priority int, daemon bool) (*Thread, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if s.virtual {
		priority = NormPriority
	}

	t := newThread(s, s.nextID.Add(1), name, priority, daemon, task)

	total := s.created.Add(1)
	s.log.Info(fmt.Sprintf("%s: %d -> %s", s.mode, total, name),
		"mode", s.mode,
		"total", total,
		"thread", name,
	)
	s.observer.ThreadCreated(t, total)
	return t, nil
}

// admit registers a thread that is about to start.
func (s *Service) admit(t *Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &SchedulingError{Thread: t.name, Op: "start", Err: ErrServiceClosed}
	}
	if !t.daemon {
		if s.live == 0 {
			s.drained = make(chan struct{})
		}
		s.live++
	}
	return nil
}

// retire is called once for every admitted thread when it terminates.
func (s *Service) retire(t *Thread, err error) {
	if !t.daemon {
		s.mu.Lock()
		s.live--
		if s.live == 0 {
			close(s.drained)
		}
		s.mu.Unlock()
	}

	if err != nil {
		s.log.Debug("thread terminated with error", "thread", t.name, "error", err)
	}
	s.observer.ThreadTerminated(t, err)
}

// Wait blocks until every started non-daemon thread has terminated or ctx is
// done.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	drained := s.drained
	s.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops admitting threads and closes the carrier pool.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.carriers.Close()
}

// Shutdown waits for non-daemon threads, then closes the service. The
// service is closed even when ctx expires first.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.Wait(ctx)
	s.Close()
	return err
}

// Stats returns a snapshot of service and carrier statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()

	return Stats{
		Mode:     s.mode,
		Virtual:  s.virtual,
		Created:  s.created.Load(),
		Live:     live,
		Carriers: s.carriers.Stats(),
	}
}

// Stats is a snapshot of a Service.
type Stats struct {
	Mode     string           `json:"mode"`
	Virtual  bool             `json:"virtual"`
	Created  uint64           `json:"created"`
	Live     int              `json:"live"`
	Carriers CarrierPoolStats `json:"carriers"`
}
