package reactor

import (
	"context"
	"time"
	"unsafe"
)

// Sender is the minimal shape an async computation exposes to a
// receiver-driven framework (spec §9's CPO-to-interface translation).
// The sender/receiver algebra itself (then, sync_wait, when_any, ...)
// is out of scope; this interface is only what the core needs to be
// pluggable into one.
type Sender[T any] interface {
	// Start begins the operation, invoking exactly one of onValue,
	// onError, onStopped exactly once.
	Start(onValue func(T), onError func(error), onStopped func())
}

// ImmediateOp implements spec §4.5.1's schedule() state machine:
// INIT -> ENQUEUED -> COMPLETED, with no independent cancellation
// window beyond a single stop-token check on dispatch. node must
// remain ImmediateOp's first field: immediateExecute recovers the
// enclosing *ImmediateOp from its *opNode by address identity.
type ImmediateOp struct {
	node      opNode
	ctx       *Context
	stopCtx   context.Context
	onValue   func()
	onStopped func()
}

// Schedule returns a sender that completes on the I/O thread, either
// with *value* (the common case) or *stopped* if stopCtx is already
// done at dispatch time.
func (s Scheduler) Schedule(stopCtx context.Context, onValue func(), onStopped func()) *ImmediateOp {
	op := &ImmediateOp{ctx: s.ctx, stopCtx: stopCtx, onValue: onValue, onStopped: onStopped}
	op.node.execute = immediateExecute
	return op
}

func immediateExecute(n *opNode) {
	op := (*ImmediateOp)(unsafe.Pointer(n))
	if op.stopCtx != nil && op.stopCtx.Err() != nil {
		if op.onStopped != nil {
			op.onStopped()
		}
		return
	}
	if op.onValue != nil {
		op.onValue()
	}
}

// Start submits the operation to the context, local queue if called
// from the I/O thread, remote queue otherwise.
func (op *ImmediateOp) Start() {
	op.ctx.schedule(&op.node)
}

// TimedOp implements spec §4.5.2's schedule_at/schedule_after state
// machine, including the remote-cancel-vs-local-elapse race. timer
// must remain TimedOp's first field for the same address-identity
// reason as ImmediateOp.node above.
type TimedOp struct {
	timer     timerNode
	ctx       *Context
	stopCtx   context.Context
	onValue   func()
	onStopped func()

	stopAfterFunc func() bool
}

// ScheduleAt returns a sender that completes no earlier than deadline.
func (s Scheduler) ScheduleAt(deadline TimePoint, stopCtx context.Context, onValue func(), onStopped func()) *TimedOp {
	op := &TimedOp{ctx: s.ctx, stopCtx: stopCtx, onValue: onValue, onStopped: onStopped}
	op.timer.deadline = deadline
	op.timer.cancellable = true
	op.timer.onValue = func(*timerNode) {
		if op.stopAfterFunc != nil {
			op.stopAfterFunc()
		}
		if op.onValue != nil {
			op.onValue()
		}
	}
	return op
}

// ScheduleAfter is ScheduleAt(Now()+d, ...).
func (s Scheduler) ScheduleAfter(d time.Duration, stopCtx context.Context, onValue func(), onStopped func()) *TimedOp {
	return s.ScheduleAt(s.Now().Add(d), stopCtx, onValue, onStopped)
}

// Start submits the timer, honoring the INIT->LOCAL_START/REMOTE_START
// split and the "token already stopped" fast path. The stop callback is
// registered only once the node reaches the heap (inside
// timedOpLocalStart), per spec §4.5.2 ("registers a callback the first
// time it enters the heap") — registering it here would let a cancel
// race the node while it is still sitting in the local/remote queue
// awaiting its first dispatch.
func (op *TimedOp) Start() {
	if op.stopCtx != nil && op.stopCtx.Err() != nil {
		if op.onStopped != nil {
			op.onStopped()
		}
		return
	}
	op.timer.opNode.execute = timedOpLocalStart
	op.ctx.schedule(&op.timer.opNode)
}

func timedOpLocalStart(n *opNode) {
	op := (*TimedOp)(unsafe.Pointer(n))
	op.ctx.timers.insert(&op.timer)
	if len(op.ctx.timers.nodes) > 0 && op.ctx.timers.nodes[0] == &op.timer {
		op.ctx.timersDirty = true
	}
	if op.stopCtx != nil && op.stopCtx.Done() != nil {
		op.stopAfterFunc = context.AfterFunc(op.stopCtx, op.requestCancel)
	}

	old := atomicFetchOrUint32(&op.timer.state, timerDispatched)
	if old&cancelPending != 0 {
		// A cancel raced Start() before the node reached the heap; it
		// observed the node not yet dispatched and deferred to us
		// instead of touching the queue a second time. Finish what it
		// started now that the timer is safely in the heap.
		op.ctx.timers.removeNode(&op.timer)
		if op.onStopped != nil {
			op.onStopped()
		}
	}
}

// requestCancel implements the remote side of the race: if the timer
// has not yet elapsed and has already been dispatched into the heap,
// this goroutine becomes responsible for removing it (scheduled onto
// the I/O thread) and delivering *stopped*. If the node has not yet
// been dispatched, timedOpLocalStart will notice the cancellation
// itself (see timerNode.requestCancel) and this call must not enqueue
// anything, since the node may still be linked into the local/remote
// queue awaiting its first dispatch.
func (op *TimedOp) requestCancel() {
	if !op.timer.requestCancel() {
		return
	}
	op.timer.opNode.execute = timedOpRemoteCancelComplete
	op.ctx.scheduleRemote(&op.timer.opNode)
}

func timedOpRemoteCancelComplete(n *opNode) {
	op := (*TimedOp)(unsafe.Pointer(n))
	op.ctx.timers.removeNode(&op.timer)
	if op.onStopped != nil {
		op.onStopped()
	}
}
