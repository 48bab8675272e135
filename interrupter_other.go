//go:build netbsd || freebsd || openbsd || dragonfly

package reactor

import "golang.org/x/sys/unix"

// interrupter on kqueue platforms falls back to a non-blocking,
// close-on-exec pipe pair, matching the fallback path of
// original_source/include/eventfd_interrupter.hpp.
type interrupter struct {
	readFd, writeFd int
}

func newInterrupter() (*interrupter, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, wrapSetupError("pipe2", err)
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
