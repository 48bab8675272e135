package reactor

import "context"

// SendOp implements spec §4.5.3's send-some concrete op, using
// MSG_NOSIGNAL so a write to a peer-closed stream surfaces as an
// error rather than raising SIGPIPE.
type SendOp struct {
	socketIOOp
	buf       Buffer
	seq       BufferSequence
	n         int
	onValue   func(int)
	onError   func(error)
	onStopped func()
}

// NewSendOp constructs a single-buffer send operation.
func NewSendOp(s Scheduler, conn *Conn, buf Buffer, stopCtx context.Context, onValue func(int), onError func(error), onStopped func()) *SendOp {
	op := &SendOp{buf: buf, onValue: onValue, onError: onError, onStopped: onStopped}
	op.socketIOOp.init(s.ctx, conn.FD(), opWrite, opVtable{perform: sendPerform, complete: sendComplete}, stopCtx)
	return op
}

// NewSendMsgOp constructs a gather send operation over seq.
func NewSendMsgOp(s Scheduler, conn *Conn, seq BufferSequence, stopCtx context.Context, onValue func(int), onError func(error), onStopped func()) *SendOp {
	op := &SendOp{seq: seq, onValue: onValue, onError: onError, onStopped: onStopped}
	op.socketIOOp.init(s.ctx, conn.FD(), opWrite, opVtable{perform: sendPerform, complete: sendComplete}, stopCtx)
	return op
}

func (op *SendOp) Start() { op.socketIOOp.start() }

func sendPerform(base *socketIOOp) {
	op := opParent[SendOp](base)
	var n int
	var err error
	if op.seq != nil {
		iov := make([][]byte, 0, len(op.seq))
		for _, b := range op.seq {
			if len(b) > 0 {
				iov = append(iov, b)
			}
		}
		n, err = writevNoSignal(op.fd, iov)
	} else {
		n, err = sendNoSignal(op.fd, op.buf)
	}
	if err != nil {
		op.code = codeFromErrno(err)
		return
	}
	op.code = codeSuccess
	op.n = n
}

func sendComplete(base *socketIOOp) {
	op := opParent[SendOp](base)
	switch {
	case op.code.ok():
		if op.onValue != nil {
			op.onValue(op.n)
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
