package reactor

import (
	"context"

	"golang.org/x/sys/unix"
)

// SocketKind distinguishes stream from datagram sockets for the
// zero-byte-read disambiguation spec §4.5.3 requires (eof on stream,
// value(0) on datagram).
type SocketKind int

const (
	StreamSocket SocketKind = iota
	DatagramSocket
)

// RecvOp implements spec §4.5.3's recv-some concrete op.
type RecvOp struct {
	socketIOOp
	kind      SocketKind
	buf       Buffer
	seq       BufferSequence
	n         int
	onValue   func(int)
	onError   func(error)
	onStopped func()
}

// NewRecvOp constructs a single-buffer receive operation.
func NewRecvOp(s Scheduler, conn *Conn, kind SocketKind, buf Buffer, stopCtx context.Context, onValue func(int), onError func(error), onStopped func()) *RecvOp {
	op := &RecvOp{kind: kind, buf: buf, onValue: onValue, onError: onError, onStopped: onStopped}
	op.socketIOOp.init(s.ctx, conn.FD(), opRead, opVtable{perform: recvPerform, complete: recvComplete}, stopCtx)
	return op
}

// NewRecvMsgOp constructs a scatter receive operation over seq.
func NewRecvMsgOp(s Scheduler, conn *Conn, kind SocketKind, seq BufferSequence, stopCtx context.Context, onValue func(int), onError func(error), onStopped func()) *RecvOp {
	op := &RecvOp{kind: kind, seq: seq, onValue: onValue, onError: onError, onStopped: onStopped}
	op.socketIOOp.init(s.ctx, conn.FD(), opRead, opVtable{perform: recvPerform, complete: recvComplete}, stopCtx)
	return op
}

func (op *RecvOp) Start() { op.socketIOOp.start() }

func recvPerform(base *socketIOOp) {
	op := opParent[RecvOp](base)
	var n int
	var err error
	if op.seq != nil {
		iov := make([][]byte, 0, len(op.seq))
		for _, b := range op.seq {
			if len(b) > 0 {
				iov = append(iov, b)
			}
		}
		n, err = unix.Readv(op.fd, iov)
	} else {
		n, err = unix.Read(op.fd, op.buf)
	}
	if err != nil {
		op.code = codeFromErrno(err)
		return
	}
	if n == 0 && op.kind == StreamSocket && bufferLen(op) > 0 {
		op.code = ErrEOF
		return
	}
	op.code = codeSuccess
	op.n = n
}

func bufferLen(op *RecvOp) int {
	if op.seq != nil {
		return op.seq.totalLen()
	}
	return len(op.buf)
}

func recvComplete(base *socketIOOp) {
	op := opParent[RecvOp](base)
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
