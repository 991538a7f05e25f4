package threads

import (
	"fmt"
	"sync/atomic"
)

// Factory produces named, numbered threads for one subsystem. It is safe for
// concurrent use; sequence numbers are unique and strictly increasing.
type Factory struct {
	svc    *Service
	prefix string
	daemon bool
	seq    atomic.Uint64
}

// NewThread returns an unstarted thread named "<prefix>-<n>". The caller
// starts it.
func (f *Factory) NewThread(task Task) (*Thread, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	n := f.seq.Add(1)
	return f.svc.build(task, fmt.Sprintf("%s-%d", f.prefix, n), NormPriority, f.daemon)
}

// Go creates and starts a thread.
func (f *Factory) Go(task Task) (*Thread, error) {
	t, err := f.NewThread(task)
	if err != nil {
		return nil, err
	}
	if err := t.Start(); err != nil {
		return nil, err
	}
	return t, nil
}

func (f *Factory) Prefix() string { return f.prefix }
func (f *Factory) Daemon() bool { return f.daemon }

// Count returns how many threads the factory has produced.
func (f *Factory) Count() uint64 { return f.seq.Load() }
