package reactor

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestTimerCancellationRaceExactlyOnce is spec §8 scenario 5: for any
// pair of concurrent {remote stop, local timer-fire} the operation
// completes exactly once. The deadline is set very close to "now" so
// a meaningful fraction of iterations race against the reaping I/O
// thread rather than trivially resolving one way.
func TestTimerCancellationRaceExactlyOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in -short mode")
	}
	ctx := newTestContext(t)
	go func() { _ = ctx.Run() }()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	defer ctx.RequestStop()

	const iterations = 10000
	sched := ctx.Scheduler()

	var values, stopped int64
	done := make(chan struct{}, iterations)

	for i := 0; i < iterations; i++ {
		deadline := sched.Now().Add(20 * time.Microsecond)
		op := sched.ScheduleAt(deadline, nil, func() {
			atomic.AddInt64(&values, 1)
			done <- struct{}{}
		}, func() {
			atomic.AddInt64(&stopped, 1)
			done <- struct{}{}
		})
		op.Start()
		go func(op *TimedOp) {
			op.requestCancel()
		}(op)
	}

	for i := 0; i < iterations; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("hang after %d/%d completions (values=%d stopped=%d)",
				i, iterations, atomic.LoadInt64(&values), atomic.LoadInt64(&stopped))
		}
	}

	if values+stopped != iterations {
		t.Fatalf("values=%d stopped=%d, want sum=%d", values, stopped, iterations)
	}
	if values == 0 || stopped == 0 {
		t.Log("warning: one outcome never occurred; race window may need widening on this machine")
	}
}
