package reactor

import (
	"testing"
	"time"
)

func TestTimerHeapOrdering(t *testing.T) {
	var h timerHeap
	base := Now()
	deadlines := []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	nodes := make([]*timerNode, len(deadlines))
	for i, d := range deadlines {
		n := &timerNode{deadline: base.Add(d), cancellable: true}
		nodes[i] = n
		h.insert(n)
	}
	if h.peek() != nodes[1] {
		t.Fatal("expected the 10ms node to be the earliest")
	}
}

func TestTimerHeapReconcileReapsElapsed(t *testing.T) {
	var h timerHeap
	now := TimePoint{sec: 100}
	n1 := &timerNode{deadline: TimePoint{sec: 99}, cancellable: true}
	n2 := &timerNode{deadline: TimePoint{sec: 101}, cancellable: true}
	h.insert(n1)
	h.insert(n2)

	var local localQueue
	var armed *TimePoint
	h.reconcile(now, &local,
		func(d TimePoint) { armed = &d },
		func() { armed = nil },
	)

	if local.empty() {
		t.Fatal("expected n1 to be reaped onto the local queue")
	}
	popped := local.popFront()
	if timerNodeOf(popped) != n1 {
		t.Fatal("reaped node should be n1")
	}
	if armed == nil || !armed.Equal(n2.deadline) {
		t.Fatal("kernel timer should be reprogrammed to n2's deadline")
	}
}

func TestTimerCancelRaceRemoteWinsWhenNotYetElapsed(t *testing.T) {
	n := &timerNode{deadline: Now().Add(time.Hour), cancellable: true}
	// The node is already in the heap, as timedOpLocalStart leaves it.
	n.state.Store(timerDispatched)
	if responsible := n.requestCancel(); !responsible {
		t.Fatal("remote cancel before elapse must be responsible for stop")
	}
	if n.state.Load()&cancelPending == 0 {
		t.Fatal("cancelPending bit must be set")
	}
}

func TestTimerCancelRaceLocalWinsWhenAlreadyElapsed(t *testing.T) {
	n := &timerNode{deadline: Now(), cancellable: true}
	n.state.Store(timerElapsed)
	if responsible := n.requestCancel(); responsible {
		t.Fatal("remote cancel after elapse must not be responsible for stop")
	}
}

func TestTimerHeapDisarmsWhenEmptied(t *testing.T) {
	var h timerHeap
	now := TimePoint{sec: 5}
	n := &timerNode{deadline: TimePoint{sec: 1}, cancellable: true}
	h.insert(n)
	armed := TimePoint{sec: 1}
	h.programmed = &armed

	var local localQueue
	disarmed := false
	h.reconcile(now, &local,
		func(TimePoint) { t.Fatal("should not rearm") },
		func() { disarmed = true },
	)
	if !disarmed {
		t.Fatal("expected the kernel timer to be disarmed once the heap empties")
	}
}
