package reactor

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// dupFD extracts and duplicates the raw descriptor underlying a
// net.Conn or net.Listener, the way
// RTradeLtd-gaio/aio_generic.go's dupconn acquires a descriptor the
// runtime can own independently of the standard library's netFD
// (which would otherwise race the runtime's own non-blocking I/O).
func dupFD(c syscall.Conn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}
	var newFD int
	var dupErr error
	err = raw.Control(func(fd uintptr) {
		newFD, dupErr = unix.Dup(int(fd))
	})
	if err != nil {
		return -1, err
	}
	if dupErr != nil {
		return -1, dupErr
	}
	if err := unix.SetNonblock(newFD, true); err != nil {
		_ = unix.Close(newFD)
		return -1, err
	}
	return newFD, nil
}

// Listener owns a duplicated, non-blocking listening socket. It does
// not itself implement net.Listener; the runtime's AcceptOp performs
// raw accept4(2) against fd directly.
type Listener struct {
	fd int
}

// NewListener duplicates l's descriptor for exclusive use by the
// runtime. The original net.Listener may be closed afterwards; the
// duplicated descriptor remains valid until Close.
func NewListener(l *net.TCPListener) (*Listener, error) {
	fd, err := dupFD(l)
	if err != nil {
		return nil, fmt.Errorf("reactor: dup listener: %w", err)
	}
	return &Listener{fd: fd}, nil
}

func (l *Listener) FD() int { return l.fd }

func (l *Listener) Close() error { return unix.Close(l.fd) }

// Conn owns a duplicated, non-blocking connected socket.
type Conn struct {
	fd int
}

// NewConn duplicates c's descriptor for exclusive use by the runtime.
func NewConn(c net.Conn) (*Conn, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("reactor: %T does not expose a raw descriptor", c)
	}
	fd, err := dupFD(sc)
	if err != nil {
		return nil, fmt.Errorf("reactor: dup conn: %w", err)
	}
	return &Conn{fd: fd}, nil
}

// NewConnFD wraps an already-owned, already-non-blocking descriptor
// directly, used for sockets AcceptOp produces.
func NewConnFD(fd int) *Conn { return &Conn{fd: fd} }

func (c *Conn) FD() int { return c.fd }

func (c *Conn) Close() error { return unix.Close(c.fd) }
