package reactor

// pollUser discriminates what a ready registration's user pointer
// refers to, per spec §6's "multiplexer registration format": the
// timer handle's own pointer, the interrupter's, or an operation's
// completionOp sub-node.
type pollUser int

const (
	pollUserInterrupter pollUser = iota
	pollUserTimer
	pollUserOperation
)

// readyEvent is one readiness record produced by a Wait call.
type readyEvent struct {
	user pollUser
	op   *completionOp // set only when user == pollUserOperation
}

// eventKind selects which readiness set an operation arms for.
type eventKind int

const (
	eventRead eventKind = iota
	eventWrite
)

// multiplexer is the platform-specific I/O readiness backend. Both
// epoll and kqueue implementations also own the kernel timer
// descriptor, since both platforms can fold timer expiry into the
// same wait call as I/O readiness (timerfd on Linux is just another
// pollable fd; kqueue has a native EVFILT_TIMER event type).
type multiplexer interface {
	// addInterrupter registers the interrupter's descriptor for
	// read-readiness, edge-triggered, once, for the lifetime of the
	// context.
	addInterrupter(fd int) error

	// setTimer arms the kernel timer to fire at deadline (absolute
	// monotonic time where the backend supports it).
	setTimer(deadline TimePoint) error
	// disarmTimer cancels any armed kernel timer.
	disarmTimer() error

	// add registers op for the given event kind.
	add(fd int, kind eventKind, op *completionOp) error
	// remove unregisters fd. Safe to call even if not registered.
	remove(fd int) error

	// wait blocks until at least one event is ready, or indefinitely
	// if block is true and no timeout is otherwise pending, or
	// returns immediately if block is false. Ready events are
	// appended to dst and the resulting slice returned.
	wait(dst []readyEvent, block bool) ([]readyEvent, error)

	close() error
}
