//go:build linux

package reactor

import "golang.org/x/sys/unix"

// sendNoSignal writes buf to fd without raising SIGPIPE on a
// peer-closed stream, per spec §4.5.3's send-some note.
func sendNoSignal(fd int, buf []byte) (int, error) {
	return unix.Send(fd, buf, unix.MSG_NOSIGNAL)
}

// writevNoSignal is sendNoSignal's scatter counterpart, used by the
// gather-send path so peer-closed streams surface as an error there
// too instead of raising SIGPIPE.
func writevNoSignal(fd int, iov [][]byte) (int, error) {
	return unix.SendmsgBuffers(fd, iov, nil, nil, unix.MSG_NOSIGNAL)
}
