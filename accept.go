package reactor

import (
	"context"

	"golang.org/x/sys/unix"
)

// AcceptOp implements spec §4.5.3's accept concrete op: perform calls
// non-blocking accept4(2); on success the new socket is already
// non-blocking (accept4's SOCK_NONBLOCK flag) and is delivered by
// value. The network_errc::eof sentinel is never produced by accept.
type AcceptOp struct {
	socketIOOp
	result    *Conn
	onValue   func(*Conn)
	onError   func(error)
	onStopped func()
}

// NewAcceptOp constructs an accept operation against l. stopCtx may
// be nil for an unstoppable operation.
func NewAcceptOp(s Scheduler, l *Listener, stopCtx context.Context, onValue func(*Conn), onError func(error), onStopped func()) *AcceptOp {
	op := &AcceptOp{onValue: onValue, onError: onError, onStopped: onStopped}
	op.socketIOOp.init(s.ctx, l.FD(), opRead, opVtable{perform: acceptPerform, complete: acceptComplete}, stopCtx)
	return op
}

// Start begins the operation (spec §4.5.3 INIT state).
func (op *AcceptOp) Start() { op.socketIOOp.start() }

func acceptPerform(base *socketIOOp) {
	op := opParent[AcceptOp](base)
	fd, _, err := unix.Accept4(op.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		op.code = codeFromErrno(err)
		return
	}
	op.code = codeSuccess
	op.result = NewConnFD(fd)
}

func acceptComplete(base *socketIOOp) {
	op := opParent[AcceptOp](base)
	switch {
	case op.code.ok():
		if op.onValue != nil {
			op.onValue(op.result)
		}
	case op.code == ErrOperationCanceled:
		if op.onStopped != nil {
			op.onStopped()
		}
	default:
		if op.onError != nil {
			op.onError(op.code)
		}
	}
}
