package threads

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSleep_FreesCarrier(t *testing.T) {
	svc := newTestService(t, true, 1, nil)

	sleeper, err := svc.Create(func(ctx context.Context) error {
		return Sleep(ctx, 300*time.Millisecond)
	}, "sleeper")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	waitFor(t, func() bool { return svc.Carriers().Stats().Parks == 1 })

	quick, err := svc.Create(func(context.Context) error { return nil }, "quick")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := quick.Join(ctx); err != nil {
		t.Fatalf("Quick thread blocked behind sleeper: %v", err)
	}
	select {
	case <-sleeper.Done():
		t.Error("Sleeper finished too early")
	default:
	}
	if err := sleeper.Join(context.Background()); err != nil {
		t.Errorf("Sleeper error: %v", err)
	}
}

func TestSleep_Interrupted(t *testing.T) {
	for _, virtual := range []bool{true, false} {
		svc := newTestService(t, virtual, 1, nil)

		th, err := svc.Create(func(ctx context.Context) error {
			return Sleep(ctx, time.Hour)
		}, "victim")
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
		th.Interrupt()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = th.Join(ctx)
		cancel()
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("virtual=%v: expected ErrInterrupted, got %v", virtual, err)
		}
		if !th.Interrupted() {
			t.Error("Interrupted() should report true")
		}
	}
}

func TestBlock_RemountsAfterCall(t *testing.T) {
	svc := newTestService(t, true, 1, nil)

	var during, after *Carrier
	th, err := svc.Create(func(ctx context.Context) error {
		err := Block(ctx, func() error {
			during = Current(ctx).Carrier()
			return errors.New("io failed")
		})
		after = Current(ctx).Carrier()
		return err
	}, "io")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := th.Join(context.Background()); err == nil || err.Error() != "io failed" {
		t.Errorf("Expected operation error, got %v", err)
	}
	if during != nil {
		t.Error("Thread should be unmounted during the blocking call")
	}
	if after == nil || after.Name() != "carrier-1" {
		t.Errorf("Thread should be remounted after the call, got %v", after)
	}
}

func TestBlock_OutsideThread(t *testing.T) {
	called := false
	err := Block(context.Background(), func() error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("Block outside a thread should call fn directly: called=%v err=%v", called, err)
	}
	if Current(context.Background()) != nil {
		t.Error("Expected no current thread")
	}
}

func TestThread_String(t *testing.T) {
	svc := newTestService(t, true, 1, nil)

	var inside string
	th, _ := svc.Create(func(ctx context.Context) error {
		inside = Current(ctx).String()
		return nil
	}, "where")
	th.Join(context.Background())

	if want := "VirtualThread[#1,where]/runnable@carrier-1"; inside != want {
		t.Errorf("Expected %q, got %q", want, inside)
	}
	if want := "VirtualThread[#1,where]/terminated"; th.String() != want {
		t.Errorf("Expected %q, got %q", want, th.String())
	}
}
