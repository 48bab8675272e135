package reactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

// TestImmediateScheduleLandsOnIOThread is spec §8 scenario 1: a
// schedule() submitted from a remote goroutine must execute on the
// goroutine that is inside Run.
func TestImmediateScheduleLandsOnIOThread(t *testing.T) {
	ctx := newTestContext(t)
	done := make(chan struct{})
	var recordedID uint64

	go func() { _ = ctx.Run() }()

	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	ioThreadID := ctx.ioThreadID.Load()

	sched := ctx.Scheduler()
	sched.Schedule(nil, func() {
		atomic.StoreUint64(&recordedID, goroutineID())
		close(done)
		ctx.RequestStop()
	}, nil).Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled callback")
	}

	for ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}

	if recordedID != ioThreadID {
		t.Fatalf("callback ran on goroutine %d, want I/O thread %d", recordedID, ioThreadID)
	}
}

// TestScheduleAfterFiresWithinWindow is spec §8 scenario 2, scaled
// down for a fast test suite.
func TestScheduleAfterFiresWithinWindow(t *testing.T) {
	ctx := newTestContext(t)
	go func() { _ = ctx.Run() }()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	defer ctx.RequestStop()

	sched := ctx.Scheduler()
	const delay = 30 * time.Millisecond
	start := time.Now()
	done := make(chan time.Duration, 1)
	sched.ScheduleAfter(delay, nil, func() {
		done <- time.Since(start)
	}, nil).Start()

	select {
	case elapsed := <-done:
		if elapsed < delay {
			t.Fatalf("fired too early: %v < %v", elapsed, delay)
		}
		if elapsed > delay+50*time.Millisecond {
			t.Fatalf("fired too late: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

// TestTenThousandImmediateSchedules is spec §8 scenario 3, using a
// counter incremented by repeated schedule() calls.
func TestTenThousandImmediateSchedules(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in -short mode")
	}
	ctx := newTestContext(t)
	go func() { _ = ctx.Run() }()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	defer ctx.RequestStop()

	const n = 10000
	sched := ctx.Scheduler()
	var counter int
	done := make(chan struct{})
	var step func()
	step = func() {
		if counter == n {
			close(done)
			return
		}
		sched.Schedule(nil, func() {
			counter++
			step()
		}, nil).Start()
	}
	step()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("only reached %d/%d", counter, n)
	}
	if counter != n {
		t.Fatalf("counter=%d, want %d", counter, n)
	}
}

// TestDoubleRunIsRejected is spec §8 scenario 6.
func TestDoubleRunIsRejected(t *testing.T) {
	ctx := newTestContext(t)
	started := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		close(started)
		_ = ctx.Run()
		close(stop)
	}()
	<-started
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}

	if err := ctx.Run(); err != ErrAlreadyRunning {
		t.Fatalf("got %v, want ErrAlreadyRunning", err)
	}

	ctx.RequestStop()
	<-stop
}

// TestRequestStopOnIdleContextExitsPromptly covers the boundary case:
// a context with no work scheduled exits Run() promptly on stop.
func TestRequestStopOnIdleContextExitsPromptly(t *testing.T) {
	ctx := newTestContext(t)
	done := make(chan struct{})
	go func() {
		_ = ctx.Run()
		close(done)
	}()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	ctx.RequestStop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not exit promptly after RequestStop")
	}
}

// TestRequestStopIsIdempotent covers the §8 round-trip property.
func TestRequestStopIsIdempotent(t *testing.T) {
	ctx := newTestContext(t)
	done := make(chan struct{})
	go func() {
		_ = ctx.Run()
		close(done)
	}()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.RequestStop()
		}()
	}
	wg.Wait()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not exit after concurrent RequestStop calls")
	}
}
