//go:build linux

package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// interrupter wakes the I/O thread's multiplexer wait from another
// thread. On Linux it is backed by an eventfd with a combined
// read/write descriptor, matching
// original_source/include/eventfd_interrupter.hpp.
type interrupter struct {
	fd int
}

func newInterrupter() (*interrupter, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, wrapSetupError("eventfd", err)
	}
	return &interrupter{fd: fd}, nil
}

func (in *interrupter) readFD() int { return in.fd }

// interrupt makes readFD() become readable. Idempotent: concurrent
// calls between two multiplexer waits coalesce into the kernel's
// eventfd counter and are observed as a single readiness edge.
func (in *interrupter) interrupt() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(in.fd, buf[:])
	if err == unix.EAGAIN {
		// Counter is saturated; already armed, nothing to do.
		return nil
	}
	return err
}

// reset drains the eventfd counter. Nothing in the package calls it:
// the loop uses edge-triggered registration and infers wakeup from
// producer-set flags (spec §4.2).
func (in *interrupter) reset() error {
	var buf [8]byte
	for {
		_, err := unix.Read(in.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return nil
		}
		return err
	}
}

func (in *interrupter) Close() error {
	return unix.Close(in.fd)
}
