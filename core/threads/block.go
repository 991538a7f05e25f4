package threads

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type threadKey struct{}

func withThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// Current returns the thread running the task that received ctx, or nil.
func Current(ctx context.Context) *Thread {
	t, _ := ctx.Value(threadKey{}).(*Thread)
	return t
}

// Block runs a blocking operation. A lightweight thread is unmounted from
// its carrier while fn runs and queues to remount afterwards, so the carrier
// serves other threads in the meantime. Elsewhere fn is simply called.
func Block(ctx context.Context, fn func() error) error {
	t := Current(ctx)
	if t == nil || !t.virtual || t.carrier.Load() == nil {
		return fn()
	}

	t.unmount()
	t.svc.carriers.stats.parks.Add(1)

	ferr := fn()
	if err := t.mount(); err != nil {
		return errors.Join(ferr, err)
	}
	return ferr
}

// Sleep pauses the calling thread for d without holding a carrier. It
// returns an error wrapping ErrInterrupted if ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	return Block(ctx, func() error {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
		}
	})
}
