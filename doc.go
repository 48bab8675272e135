// Package reactor implements a single-threaded, completion-based
// asynchronous networking runtime for POSIX platforms. A Context owns
// an I/O multiplexer, a monotonic timer source and a pair of work
// queues, and drives non-blocking accept/recv/send operations to
// completion from exactly one goroutine.
package reactor
