//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package reactor

import "golang.org/x/sys/unix"

// sendNoSignal writes buf to fd, suppressing SIGPIPE via SO_NOSIGPIPE
// (BSD/Darwin have no MSG_NOSIGNAL flag on send(2)).
func sendNoSignal(fd int, buf []byte) (int, error) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
	return unix.Write(fd, buf)
}

// writevNoSignal is sendNoSignal's scatter counterpart.
func writevNoSignal(fd int, iov [][]byte) (int, error) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
	return unix.Writev(fd, iov)
}
