package threads

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrInterrupted is returned by blocking helpers when the calling thread
	// was interrupted while waiting.
	ErrInterrupted = errors.New("threads: operation interrupted")

	ErrAlreadyStarted  = errors.New("threads: thread already started")
	ErrInvalidPriority = errors.New("threads: priority out of range")
	ErrNilTask         = errors.New("threads: nil task")
	ErrServiceClosed   = errors.New("threads: service closed")
	ErrPoolClosed      = errors.New("threads: carrier pool closed")
)

// ConfigurationError reports an invalid service or pool setting.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("threads: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// SchedulingError reports that a thread could not be started or mounted.
// Creation is never retried; the caller decides what to do with it.
type SchedulingError struct {
	Thread string
	Op     string
	Err    error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("threads: %s %q: %v", e.Op, e.Thread, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// PanicError is the terminal error of a thread whose task panicked.
type PanicError struct {
	Thread string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("threads: task in %q panicked: %v", e.Thread, e.Value)
}

// IsScheduling reports whether err is, or wraps, a *SchedulingError.
func IsScheduling(err error) bool {
	var se *SchedulingError
	return errors.As(err, &se)
}
