package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// TestConcurrentRemoteSchedulers exercises many goroutines submitting
// work through the remote queue simultaneously, checking every
// submission is eventually dispatched exactly once on the I/O thread.
func TestConcurrentRemoteSchedulers(t *testing.T) {
	ctx := newTestContext(t)
	go func() { _ = ctx.Run() }()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	defer ctx.RequestStop()

	sched := ctx.Scheduler()
	const producers = 16
	const perProducer = 200
	var completed int64
	done := make(chan struct{})
	var total int64 = producers * perProducer

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				sched.Schedule(nil, func() {
					if atomic.AddInt64(&completed, 1) == total {
						close(done)
					}
				}, nil).Start()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("producer group failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("only %d/%d scheduled callbacks completed", atomic.LoadInt64(&completed), total)
	}
}
