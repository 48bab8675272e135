package reactor

import (
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's numeric id by parsing
// the header line of runtime.Stack, the only goroutine-identity
// primitive the language exposes without cgo. Used only to implement
// is_running_on_io_thread(); never on a hot path beyond the pinning
// done once per Run call and once per Schedule call.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	b = b[len(prefix):]
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
