package threads

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
)

// Task is a unit of work run by a Thread. ctx identifies the running thread
// (see Current) and is cancelled when the thread is interrupted.
type Task func(ctx context.Context) error

// State of a thread
type State int32

const (
	StateNew State = iota
	StateRunnable
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunnable:
		return "runnable"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Thread is a handle to one created thread.
type Thread struct {
	id       uint64
	name     string
	priority int
	daemon   bool
	virtual  bool
	task     Task
	svc      *Service

	state       atomic.Int32
	interrupted atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	err         error // written before done is closed

	carrier atomic.Pointer[Carrier]
	tid     atomic.Int64
}

func newThread(s *Service, id uint64, name string, priority int, daemon bool, task Task) *Thread {
	t := &Thread{
		id:       id,
		name:     name,
		priority: priority,
		daemon:   daemon,
		virtual:  s.virtual,
		task:     task,
		svc:      s,
		done:     make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.ctx = withThread(ctx, t)
	t.cancel = cancel
	return t
}

func (t *Thread) ID() uint64 { return t.id }
func (t *Thread) Name() string { return t.name }
func (t *Thread) Priority() int { return t.priority }
func (t *Thread) Daemon() bool { return t.daemon }
func (t *Thread) Virtual() bool { return t.virtual }
func (t *Thread) State() State { return State(t.state.Load()) }
func (t *Thread) Done() <-chan struct{} { return t.done }

// Carrier returns the carrier the thread is mounted on, or nil.
func (t *Thread) Carrier() *Carrier { return t.carrier.Load() }

// OSThreadID returns the kernel thread id of a running platform thread. It
// is zero for lightweight threads and on platforms without thread ids.
func (t *Thread) OSThreadID() int { return int(t.tid.Load()) }

// Start schedules the thread. A thread can be started once.
func (t *Thread) Start() error {
	if !t.state.CompareAndSwap(int32(StateNew), int32(StateRunnable)) {
		return ErrAlreadyStarted
	}
	if err := t.svc.admit(t); err != nil {
		t.err = err
		t.state.Store(int32(StateTerminated))
		t.cancel()
		close(t.done)
		return err
	}
	go t.run()
	return nil
}

func (t *Thread) run() {
	var err error
	defer func() {
		t.err = err
		t.state.Store(int32(StateTerminated))
		t.svc.retire(t, err)
		t.cancel()
		close(t.done)
	}()

	if t.virtual {
		if err = t.mount(); err != nil {
			return
		}
		defer t.unmount()
	} else {
		// Never unlocked: the runtime retires the OS thread together with
		// this goroutine, so no other goroutine ever runs on it.
		runtime.LockOSThread()
		tid := gettid()
		t.tid.Store(int64(tid))
		if perr := applyPriority(tid, t.priority); perr != nil {
			t.svc.log.Debug("priority hint not applied", "thread", t.name, "priority", t.priority, "error", perr)
		}
	}

	err = t.call()
}

func (t *Thread) call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Thread: t.name, Value: r, Stack: debug.Stack()}
		}
	}()
	return t.task(t.ctx)
}

func (t *Thread) mount() error {
	c, err := t.svc.carriers.acquire()
	if err != nil {
		return &SchedulingError{Thread: t.name, Op: "mount", Err: err}
	}
	c.mounted.Store(t)
	c.mounts.Add(1)
	t.carrier.Store(c)
	t.svc.observer.CarrierMounted(c, t)
	return nil
}

func (t *Thread) unmount() {
	c := t.carrier.Swap(nil)
	if c == nil {
		return
	}
	t.svc.observer.CarrierUnmounted(c, t)
	c.mounted.CompareAndSwap(t, nil)
	t.svc.carriers.release(c)
}

// Join waits for the thread to terminate and returns the task's error. If
// ctx is done first, Join returns ctx.Err() and the thread keeps running.
func (t *Thread) Join(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the terminal error once the thread has terminated.
func (t *Thread) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Interrupt cancels the thread's context. Blocking helpers waiting on it
// return ErrInterrupted; the task decides what to do with that.
func (t *Thread) Interrupt() {
	t.interrupted.Store(true)
	t.cancel()
}

// Interrupted reports whether Interrupt was called.
func (t *Thread) Interrupted() bool {
	return t.interrupted.Load()
}

// String describes the thread and where it currently runs, e.g.
// "VirtualThread[#7,http-nio-3]/runnable@carrier-2" or
// "Thread[#7,http-nio-3,5,tid=41022]".
func (t *Thread) String() string {
	if !t.virtual {
		return fmt.Sprintf("Thread[#%d,%s,%d,tid=%d]", t.id, t.name, t.priority, t.tid.Load())
	}
	state := t.State().String()
	if c := t.carrier.Load(); c != nil {
		return fmt.Sprintf("VirtualThread[#%d,%s]/%s@%s", t.id, t.name, state, c.name)
	}
	if t.State() == StateRunnable {
		state = "parked"
	}
	return fmt.Sprintf("VirtualThread[#%d,%s]/%s", t.id, t.name, state)
}
