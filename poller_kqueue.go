//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

const kqueueTimerIdent = 1

// kqueueMux is the BSD/Darwin multiplexer backend: kqueue for I/O
// readiness plus its native EVFILT_TIMER event type for the kernel
// timer, following the same registration-by-fd idiom as epollMux.
// Unlike timerfd, EVFILT_TIMER has no absolute-deadline mode, so
// setTimer reprograms with a relative nanosecond delta recomputed
// from Now() at each reconciliation (see
// DESIGN.md Open Question #4).
type kqueueMux struct {
	kq        int
	maxEvents int
	regs      map[int]*completionOp
	raw       []unix.Kevent_t
}

func newMultiplexer(maxEvents int) (multiplexer, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, wrapSetupError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	return &kqueueMux{kq: kq, maxEvents: maxEvents, regs: make(map[int]*completionOp)}, nil
}

func (m *kqueueMux) addInterrupter(fd int) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	_, err := unix.Kevent(m.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (m *kqueueMux) setTimer(deadline TimePoint) error {
	delta := deadline.Sub(Now())
	if delta < 0 {
		delta = 0
	}
	ev := unix.Kevent_t{
		Ident:  kqueueTimerIdent,
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
		Fflags: unix.NOTE_NSECONDS,
		Data:   int64(delta / time.Nanosecond),
	}
	_, err := unix.Kevent(m.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (m *kqueueMux) disarmTimer() error {
	ev := unix.Kevent_t{
		Ident:  kqueueTimerIdent,
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_DELETE,
	}
	_, err := unix.Kevent(m.kq, []unix.Kevent_t{ev}, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (m *kqueueMux) add(fd int, kind eventKind, op *completionOp) error {
	filter := int16(unix.EVFILT_READ)
	if kind == eventWrite {
		filter = unix.EVFILT_WRITE
	}
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(m.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return err
	}
	m.regs[fd] = op
	return nil
}

func (m *kqueueMux) remove(fd int) error {
	delete(m.regs, fd)
	for _, filter := range [2]int16{unix.EVFILT_READ, unix.EVFILT_WRITE} {
		ev := unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: unix.EV_DELETE}
		_, _ = unix.Kevent(m.kq, []unix.Kevent_t{ev}, nil, nil)
	}
	return nil
}

func (m *kqueueMux) wait(dst []readyEvent, block bool) ([]readyEvent, error) {
	var timeout *unix.Timespec
	if !block {
		timeout = &unix.Timespec{}
	}
	if cap(m.raw) == 0 {
		m.raw = make([]unix.Kevent_t, m.maxEvents)
	}
	n, err := unix.Kevent(m.kq, nil, m.raw, timeout)
	if err == unix.EINTR {
		return dst, nil
	}
	if err != nil {
		return dst, err
	}
	for i := 0; i < n; i++ {
		ev := m.raw[i]
		fd := int(ev.Ident)
		switch {
		case ev.Filter == unix.EVFILT_TIMER && fd == kqueueTimerIdent:
			dst = append(dst, readyEvent{user: pollUserTimer})
		case m.regs[fd] != nil:
			dst = append(dst, readyEvent{user: pollUserOperation, op: m.regs[fd]})
		default:
			dst = append(dst, readyEvent{user: pollUserInterrupter})
		}
	}
	return dst, nil
}

func (m *kqueueMux) close() error {
	return unix.Close(m.kq)
}
