//go:build darwin

package reactor

import "golang.org/x/sys/unix"

// interrupter on Darwin falls back to a pipe pair, the same shape as
// interrupter_other.go's BSD path, but built from unix.Pipe plus
// fcntl: Darwin has no pipe2(2) syscall, so O_CLOEXEC/O_NONBLOCK are
// applied after creation instead of atomically at creation time.
type interrupter struct {
	readFd, writeFd int
}

func newInterrupter() (*interrupter, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, wrapSetupError("pipe", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, wrapSetupError("set_nonblock", err)
		}
		unix.CloseOnExec(fd)
	}
	return &interrupter{readFd: fds[0], writeFd: fds[1]}, nil
}

func (in *interrupter) readFD() int { return in.readFd }

func (in *interrupter) interrupt() error {
	_, err := unix.Write(in.writeFd, []byte{1})
	if err == unix.EAGAIN {
		// Pipe buffer already has a pending byte; already armed.
		return nil
	}
	return err
}

func (in *interrupter) reset() error {
	var buf [1024]byte
	for {
		n, err := unix.Read(in.readFd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || n == 0 {
			return nil
		}
		if err != nil {
			return err
		}
		if n < len(buf) {
			return nil
		}
	}
}

func (in *interrupter) Close() error {
	err1 := unix.Close(in.readFd)
	err2 := unix.Close(in.writeFd)
	if err1 != nil {
		return err1
	}
	return err2
}
