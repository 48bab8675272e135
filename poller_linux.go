//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// epollMux is the Linux multiplexer backend, combining epoll for I/O
// readiness with a timerfd for the kernel timer, following the
// wiring shape of
// joeycumines-go-utilpkg/eventloop/poller_linux.go's FastPoller. Ready
// registrations are looked up by fd in regs, the same indexed-lookup
// idiom FastPoller uses instead of packing a pointer into epoll's
// data union (golang.org/x/sys/unix.EpollEvent does not expose that
// union as a single field Go code can portably store a pointer in).
type epollMux struct {
	epfd      int
	timerFd   int
	maxEvents int
	raw       []unix.EpollEvent
	regs      map[int]*completionOp
}

func newMultiplexer(maxEvents int) (multiplexer, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, wrapSetupError("epoll_create1", err)
	}
	timerFd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, wrapSetupError("timerfd_create", err)
	}
	m := &epollMux{epfd: epfd, timerFd: timerFd, maxEvents: maxEvents, regs: make(map[int]*completionOp)}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(timerFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, timerFd, &ev); err != nil {
		_ = unix.Close(timerFd)
		_ = unix.Close(epfd)
		return nil, wrapSetupError("epoll_ctl(timerfd)", err)
	}
	return m, nil
}

func (m *epollMux) addInterrupter(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (m *epollMux) setTimer(deadline TimePoint) error {
	sec, nsec := deadline.Unix()
	spec := unix.ItimerSpec{
		Value: unix.Timespec{Sec: sec, Nsec: nsec},
	}
	return unix.TimerfdSettime(m.timerFd, unix.TFD_TIMER_ABSTIME, &spec, nil)
}

func (m *epollMux) disarmTimer() error {
	var spec unix.ItimerSpec
	return unix.TimerfdSettime(m.timerFd, 0, &spec, nil)
}

func (m *epollMux) add(fd int, kind eventKind, op *completionOp) error {
	var events uint32
	if kind == eventRead {
		events = unix.EPOLLIN | unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLPRI | unix.EPOLLET
	} else {
		events = unix.EPOLLOUT | unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLPRI | unix.EPOLLET
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	m.regs[fd] = op
	return nil
}

func (m *epollMux) remove(fd int) error {
	delete(m.regs, fd)
	err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (m *epollMux) wait(dst []readyEvent, block bool) ([]readyEvent, error) {
	timeout := 0
	if block {
		timeout = -1
	}
	if cap(m.raw) == 0 {
		m.raw = make([]unix.EpollEvent, m.maxEvents)
	}
	n, err := unix.EpollWait(m.epfd, m.raw, timeout)
	if err == unix.EINTR {
		return dst, nil
	}
	if err != nil {
		return dst, err
	}
	for i := 0; i < n; i++ {
		fd := int(m.raw[i].Fd)
		switch {
		case fd == m.timerFd:
			var buf [8]byte
			_, _ = unix.Read(m.timerFd, buf[:])
			dst = append(dst, readyEvent{user: pollUserTimer})
		case m.regs[fd] != nil:
			dst = append(dst, readyEvent{user: pollUserOperation, op: m.regs[fd]})
		default:
			dst = append(dst, readyEvent{user: pollUserInterrupter})
		}
	}
	return dst, nil
}

func (m *epollMux) close() error {
	err1 := unix.Close(m.timerFd)
	err2 := unix.Close(m.epfd)
	if err1 != nil {
		return err1
	}
	return err2
}
