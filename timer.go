package reactor

import (
	"container/heap"
	"sync/atomic"
	"unsafe"
)

const (
	timerElapsed   uint32 = 1 << 16
	cancelPending  uint32 = 1
	// timerDispatched marks that timedOpLocalStart has inserted the node
	// into the heap at least once. It arbitrates, symmetrically with
	// cancelPending, whether a concurrent requestCancel or the local
	// dispatch itself is the one responsible for delivering *stopped*
	// when a cancel races the node's very first dispatch (spec §4.5.2).
	timerDispatched uint32 = 1 << 1
	rearmThreshold         = 1000 // nanoseconds; avoid reprogramming the kernel timer for sub-microsecond jitter.
)

// timerNode extends opNode with a deadline, a cancellability flag and
// the atomic state bits used to arbitrate the remote-cancel vs.
// local-elapse race exactly once (spec §4.3/§4.5.2). opNode must
// remain the first field: timerNodeOf recovers *timerNode from an
// *opNode by address identity.
type timerNode struct {
	opNode
	deadline    TimePoint
	cancellable bool
	state       atomic.Uint32
	heapIndex   int
	onValue     func(*timerNode)
	onStopped   func(*timerNode)
}

// timerNodeOf recovers the enclosing *timerNode from its embedded
// opNode pointer; valid because opNode is timerNode's first field.
func timerNodeOf(n *opNode) *timerNode {
	return (*timerNode)(unsafe.Pointer(n))
}

// timerHeap is an intrusive min-heap over deadline with stable
// removal by stored index, modeled on gaio's timedHeap generalized
// with the cancellation bits timers need here.
type timerHeap struct {
	nodes      []*timerNode
	programmed *TimePoint
}

func (h *timerHeap) Len() int { return len(h.nodes) }
func (h *timerHeap) Less(i, j int) bool {
	return h.nodes[i].deadline.Before(h.nodes[j].deadline)
}
func (h *timerHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].heapIndex = i
	h.nodes[j].heapIndex = j
}
func (h *timerHeap) Push(x any) {
	n := x.(*timerNode)
	n.heapIndex = len(h.nodes)
	h.nodes = append(h.nodes, n)
}
func (h *timerHeap) Pop() any {
	old := h.nodes
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.nodes = old[:n-1]
	item.heapIndex = -1
	return item
}

func (h *timerHeap) peek() *timerNode {
	if len(h.nodes) == 0 {
		return nil
	}
	return h.nodes[0]
}

func (h *timerHeap) insert(n *timerNode) {
	heap.Push(h, n)
}

// removeNode removes n from the heap if it is still present. Safe to
// call with a node that has already been popped (heapIndex == -1).
func (h *timerHeap) removeNode(n *timerNode) {
	if n.heapIndex < 0 || n.heapIndex >= len(h.nodes) || h.nodes[n.heapIndex] != n {
		return
	}
	heap.Remove(h, n.heapIndex)
}

// reconcile implements spec §4.3: reap elapsed timers onto dst, then
// reprogram the kernel timer handle via set/disarm, respecting the
// rearm threshold.
func (h *timerHeap) reconcile(now TimePoint, dst *localQueue, set func(TimePoint), disarm func()) {
	for {
		top := h.peek()
		if top == nil || top.deadline.After(now) {
			break
		}
		heap.Pop(h)
		if top.cancellable {
			old := atomicFetchOrUint32(&top.state, timerElapsed)
			if old&cancelPending != 0 {
				// A remote thread already took responsibility for
				// completing this node with *stopped*.
				continue
			}
		}
		top.opNode.enqueued.Store(true)
		top.opNode.execute = timerCompleteValue
		dst.pushBack(&top.opNode)
	}

	newTop := h.peek()
	switch {
	case newTop == nil:
		if h.programmed != nil {
			disarm()
			h.programmed = nil
		}
	case h.programmed == nil:
		set(newTop.deadline)
		d := newTop.deadline
		h.programmed = &d
	default:
		delta := newTop.deadline.Sub(*h.programmed)
		if delta > rearmThreshold || delta < -rearmThreshold {
			set(newTop.deadline)
			d := newTop.deadline
			h.programmed = &d
		}
	}
}

func timerCompleteValue(n *opNode) {
	tn := timerNodeOf(n)
	n.enqueued.Store(false)
	if tn.onValue != nil {
		tn.onValue(tn)
	}
}

// requestCancel implements the remote side of the §4.5.2 cancellation
// race: fetch-or(cancelPending), then decide who schedules the
// stopped-completion from the single atomic snapshot taken at that
// moment.
//
//   - If the timer already elapsed (timerElapsed set), the local
//     reconcile loop won the race; nothing to do here.
//   - Otherwise, if the node has already been dispatched into the heap
//     (timerDispatched set), timedOpLocalStart's own read of
//     cancelPending necessarily happened before this write landed (the
//     two fetch-ors are totally ordered on the same word), so
//     timedOpLocalStart could not have observed our cancel — the caller
//     must schedule the remote cancel-complete itself.
//   - Otherwise the node has not been dispatched yet: it may still be
//     sitting in the local/remote queue awaiting its first dispatch.
//     timedOpLocalStart, whenever it runs, will observe cancelPending
//     already set in that same snapshot and will deliver *stopped*
//     itself once the node is safely in the heap; the caller must not
//     touch the queue a second time.
func (n *timerNode) requestCancel() (shouldScheduleRemote bool) {
	old := atomicFetchOrUint32(&n.state, cancelPending)
	if old&timerElapsed != 0 {
		return false
	}
	return old&timerDispatched != 0
}
