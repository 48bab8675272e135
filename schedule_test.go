package reactor

import (
	"context"
	"testing"
	"time"
)

func TestImmediateScheduleHonorsAlreadyStoppedToken(t *testing.T) {
	ctx := newTestContext(t)
	go func() { _ = ctx.Run() }()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	defer ctx.RequestStop()

	stopCtx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := ctx.Scheduler()
	result := make(chan string, 1)
	sched.Schedule(stopCtx,
		func() { result <- "value" },
		func() { result <- "stopped" },
	).Start()

	select {
	case got := <-result:
		if got != "stopped" {
			t.Fatalf("got %q, want %q", got, "stopped")
		}
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

// TestScheduleAfterZeroOrdersAfterPendingWork covers the §8 round-trip
// property: schedule_after(0) behaves like schedule() — it runs after
// already-pending local work, not ahead of it.
func TestScheduleAfterZeroOrdersAfterPendingWork(t *testing.T) {
	ctx := newTestContext(t)
	go func() { _ = ctx.Run() }()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	defer ctx.RequestStop()

	sched := ctx.Scheduler()
	var order []string
	done := make(chan struct{})

	sched.Schedule(nil, func() {
		order = append(order, "immediate")
		sched.Schedule(nil, func() {
			order = append(order, "pending")
		}, nil).Start()
		sched.ScheduleAfter(0, nil, func() {
			order = append(order, "after-zero")
			close(done)
		}, nil).Start()
	}, nil).Start()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chain never completed")
	}
	if len(order) != 3 || order[0] != "immediate" || order[1] != "pending" || order[2] != "after-zero" {
		t.Fatalf("got order %v", order)
	}
}

// TestScheduleAtPastDeadlineFiresNextTurn covers the §8 boundary rule
// that a past deadline delivers on the next loop turn without
// touching the multiplexer's timeout.
func TestScheduleAtPastDeadlineFiresNextTurn(t *testing.T) {
	ctx := newTestContext(t)
	go func() { _ = ctx.Run() }()
	for !ctx.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	defer ctx.RequestStop()

	sched := ctx.Scheduler()
	done := make(chan struct{})
	past := sched.Now().Add(-time.Hour)
	sched.ScheduleAt(past, nil, func() { close(done) }, nil).Start()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("past-deadline timer never fired")
	}
}
