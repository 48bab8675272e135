package reactor

import "sync/atomic"

// opNode is the shape every asynchronous operation embeds. It is
// present on at most one queue at a time; enqueued is true while,
// and only while, the node sits in a queue.
type opNode struct {
	enqueued atomic.Bool
	next     *opNode
	execute  func(*opNode)
}

// localQueue is a non-thread-safe FIFO intrusive list owned by the
// I/O thread. Grounded on the shape of gaio's pendingProcessing
// slice, generalized to an intrusive linked list so nodes newly
// enqueued during a drain are naturally deferred to the next pass.
type localQueue struct {
	head, tail *opNode
}

func (q *localQueue) empty() bool { return q.head == nil }

func (q *localQueue) pushBack(n *opNode) {
	n.next = nil
	if q.tail == nil {
		q.head, q.tail = n, n
		return
	}
	q.tail.next = n
	q.tail = n
}

// pushListBack appends an entire externally-built chain without
// touching enqueued flags; callers preserve them.
func (q *localQueue) pushListBack(head, tail *opNode) {
	if head == nil {
		return
	}
	if q.tail == nil {
		q.head, q.tail = head, tail
		return
	}
	q.tail.next = head
	q.tail = tail
}

func (q *localQueue) popFront() *opNode {
	n := q.head
	if n == nil {
		return nil
	}
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	n.next = nil
	return n
}

// remoteQueue is a single-consumer, multi-producer atomic LIFO with
// an inactive sentinel state, ported from
// original_source/src/atomic_intrusive_queue.hpp. The sentinel value
// is a private node allocated by newRemoteQueue, which can never
// coincide with a real node pointer.
type remoteQueue struct {
	head             atomic.Pointer[opNode]
	inactiveSentinel *opNode
}

// newRemoteQueue returns a queue initialized to the inactive state.
// The sentinel is a private, otherwise unreachable *opNode allocated
// once per queue, standing in for the C++ original's trick of using
// the address of the head field itself as the inactive marker — Go's
// atomic.Pointer cannot portably alias arbitrary addresses that way.
func newRemoteQueue() *remoteQueue {
	q := &remoteQueue{inactiveSentinel: &opNode{}}
	q.head.Store(q.inactiveSentinel)
	return q
}

func (q *remoteQueue) isInactive(p *opNode) bool {
	return p == q.inactiveSentinel
}

// enqueue pushes n onto the queue and reports whether the queue was
// inactive (and thus the caller is responsible for interrupting the
// I/O thread).
func (q *remoteQueue) enqueue(n *opNode) (wasInactive bool) {
	for {
		old := q.head.Load()
		if q.isInactive(old) {
			n.next = nil
		} else {
			n.next = old
		}
		if q.head.CompareAndSwap(old, n) {
			return q.isInactive(old)
		}
	}
}

// tryMarkInactiveOrDequeueAll atomically either flips the queue to
// inactive (if it observes it empty, i.e. already holding the
// sentinel) or swaps out the whole chain and returns it reversed
// into FIFO submission order.
func (q *remoteQueue) tryMarkInactiveOrDequeueAll() (head, tail *opNode) {
	old := q.head.Load()
	if q.isInactive(old) {
		return nil, nil
	}
	if !q.head.CompareAndSwap(old, q.inactiveSentinel) {
		// A producer raced us; fall back to swapping whatever is
		// there now rather than spin indefinitely.
		old = q.head.Swap(q.inactiveSentinel)
	}
	return reverseChain(old)
}

// tryMarkActive transitions out of inactive without dequeuing,
// leaving the queue ready to accept enqueue() calls that will report
// wasInactive=false for the thread that is already about to drain it.
func (q *remoteQueue) tryMarkActive() bool {
	return q.head.CompareAndSwap(q.inactiveSentinel, nil)
}

func reverseChain(head *opNode) (newHead, newTail *opNode) {
	if head == nil {
		return nil, nil
	}
	var prev *opNode
	tail := head
	for head != nil {
		next := head.next
		head.next = prev
		prev = head
		head = next
	}
	return prev, tail
}
