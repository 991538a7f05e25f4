// Package threads creates threads of work under one of two scheduling modes.
//
// In platform mode every thread is a goroutine locked to its own OS thread
// for its whole life. In virtual mode threads are goroutines that must be
// mounted on one of a fixed number of carriers to execute; blocking calls made
// through Block or Sleep unmount the thread so the carrier can run others.
// The number of threads executing at once is therefore bounded by the pool
// size however many are blocked.
//
//	svc, err := threads.New(threads.Options{Virtual: true, Carriers: 4})
//	if err != nil {
//		return err
//	}
//	workers := svc.NewFactory("worker", true)
//	t, err := workers.Go(func(ctx context.Context) error {
//		return threads.Sleep(ctx, time.Second)
//	})
package threads
