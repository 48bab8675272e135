package reactor

import (
	"context"
	"sync/atomic"
	"unsafe"
)

const (
	operationEnded     uint32 = 1 << 16
	requestStopped     uint32 = 1
	requestStoppedMask uint32 = 0xFFFF
)

// completionOp is the sub-node a socketIOOp presents to the
// multiplexer and to the local/remote queues while it is pending.
type completionOp struct {
	opNode
}

// stopOp is the sub-node a socketIOOp uses to schedule its own
// stopped-completion, independently of completionOp, so the two can
// be enqueued at the same time without allocation (spec §3, §4.5.3).
type stopOp struct {
	opNode
}

// opVtable is the {perform, complete} pair each concrete op kind
// supplies, the Go realization of spec §9's "vtable-by-value"
// translation of the source's CRTP subclassing.
type opVtable struct {
	// perform attempts to advance the I/O by one syscall, writing the
	// outcome into op.code. Must not block.
	perform func(op *socketIOOp)
	// complete delivers the terminal signal to the receiver based on
	// op.code.
	complete func(op *socketIOOp)
}

type opKind int

const (
	opRead opKind = iota
	opWrite
)

// socketIOOp is the common base for accept/recv/send/connect
// operations, grounded bit-for-bit on
// original_source/src/epoll/socket_io_base_op.hpp.
type socketIOOp struct {
	completion completionOp
	stop       stopOp

	ctx   *Context
	fd    int
	kind  opKind
	vt    opVtable
	state atomic.Uint32
	code  Code

	stopCtx       context.Context
	stopAfterFunc func() bool // deregisters the context.AfterFunc registration
}

// socketIONodeOf recovers the enclosing *socketIOOp from a
// *completionOp pointer; valid because completion is socketIOOp's
// first field.
func socketIONodeOf(c *completionOp) *socketIOOp {
	return (*socketIOOp)(unsafe.Pointer(c))
}

// opParent recovers a concrete op type from its embedded
// *socketIOOp, valid whenever socketIOOp is T's first field — true
// for every concrete op in this package (AcceptOp, RecvOp, SendOp,
// ConnectOp).
func opParent[T any](base *socketIOOp) *T {
	return (*T)(unsafe.Pointer(base))
}

func socketIOFromStop(s *stopOp) *socketIOOp {
	// stop is the second field; recover the base pointer by
	// subtracting the offset of `stop` within socketIOOp.
	return (*socketIOOp)(unsafe.Pointer(uintptr(unsafe.Pointer(s)) - unsafe.Offsetof(socketIOOp{}.stop)))
}

func (op *socketIOOp) init(ctx *Context, fd int, kind opKind, vt opVtable, stopCtx context.Context) {
	op.ctx = ctx
	op.fd = fd
	op.kind = kind
	op.vt = vt
	op.stopCtx = stopCtx
	op.completion.opNode.execute = onCompletionExecute
	op.stop.opNode.execute = onStopExecute
}

// start implements spec §4.5.3's INIT state: dispatch to the I/O
// thread if necessary, else perform immediately.
func (op *socketIOOp) start() {
	if !op.ctx.isRunningOnIOThread() {
		op.completion.opNode.execute = onScheduleComplete
		op.ctx.scheduleRemote(&op.completion.opNode)
		return
	}
	op.perform()
}

func onScheduleComplete(n *opNode) {
	c := (*completionOp)(unsafe.Pointer(n))
	op := socketIONodeOf(c)
	op.completion.opNode.execute = onCompletionExecute
	op.perform()
}

// perform implements the "perform-once-first" rule: the vtable's
// perform is called synchronously; if it did not block, completion
// happens right away without touching the multiplexer.
func (op *socketIOOp) perform() {
	op.vt.perform(op)
	if op.code == ErrWouldBlock || op.code == ErrTryAgain {
		op.code = codeSuccess
		if op.stopCtx != nil && op.stopCtx.Done() != nil {
			op.stopAfterFunc = context.AfterFunc(op.stopCtx, func() { op.requestStop() })
		}
		op.armWithMultiplexer()
		op.completion.opNode.execute = onWakeup
		return
	}

	old := op.state.Add(operationEnded)
	if old&requestStoppedMask != 0 {
		// A remote thread is responsible for delivering *stopped* and
		// deregistering the fd.
		return
	}
	op.vt.complete(op)
}

func (op *socketIOOp) armWithMultiplexer() {
	kind := eventRead
	if op.kind == opWrite {
		kind = eventWrite
	}
	if err := op.ctx.mux.add(op.fd, kind, &op.completion); err != nil {
		op.code = codeFromErrno(err)
		if op.stopAfterFunc != nil {
			op.stopAfterFunc()
			op.stopAfterFunc = nil
		}
		old := op.state.Add(operationEnded)
		if old&requestStoppedMask != 0 {
			return
		}
		op.vt.complete(op)
	}
}

func onCompletionExecute(n *opNode) {
	c := (*completionOp)(unsafe.Pointer(n))
	op := socketIONodeOf(c)
	op.perform()
}

// onWakeup handles a multiplexer readiness event for op, implementing
// the PERFORM_AGAIN transition of spec §4.5.3. A readiness wake can
// still yield would_block/try_again on an edge-triggered multiplexer
// (a spurious or partial wake); per spec §7 that must be consumed
// internally and re-armed, never surfaced as onError, so this mirrors
// perform()'s would-block branch rather than completing unconditionally.
func onWakeup(n *opNode) {
	c := (*completionOp)(unsafe.Pointer(n))
	op := socketIONodeOf(c)
	_ = op.ctx.mux.remove(op.fd)

	op.vt.perform(op)
	if op.code == ErrWouldBlock || op.code == ErrTryAgain {
		op.code = codeSuccess
		op.armWithMultiplexer()
		op.completion.opNode.execute = onWakeup
		return
	}

	if op.stopAfterFunc != nil {
		op.stopAfterFunc()
		op.stopAfterFunc = nil
	}
	old := op.state.Add(operationEnded)
	if old&requestStoppedMask != 0 {
		return
	}
	op.vt.complete(op)
}

func onStopExecute(n *opNode) {
	op := socketIOFromStop((*stopOp)(unsafe.Pointer(n)))
	op.completeWithStop()
}

// completeWithStop implements spec §4.5.3's complete_with_stop: if
// the completion sub-node is not itself pending in a queue, deliver
// *stopped* right away; otherwise the op is already about to
// complete normally, so re-schedule the stop as a follow-up local
// task to preserve exactly-once delivery.
func (op *socketIOOp) completeWithStop() {
	if !op.completion.opNode.enqueued.Load() {
		op.code = ErrOperationCanceled
		op.vt.complete(op)
		return
	}
	op.stop.opNode.execute = onStopExecute
	op.ctx.scheduleLocal(&op.stop.opNode)
}

// requestStop implements the remote side of spec §4.5.3's
// cancellation race.
func (op *socketIOOp) requestStop() {
	old := op.state.Add(requestStopped)
	if old&operationEnded == 0 {
		_ = op.ctx.mux.remove(op.fd)
		op.stop.opNode.execute = onStopExecute
		op.ctx.scheduleRemote(&op.stop.opNode)
	}
}
