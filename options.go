package reactor

import (
	"log/slog"
)

// options configures Context construction. Grounded on gaio's
// NewWatcherSize(bufsize) parameter and on the functional-options
// idiom used throughout the joeycumines-go-utilpkg eventloop package.
type options struct {
	logger        *slog.Logger
	clock         func() TimePoint
	maxPollEvents int
}

// Option configures a Context.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:        slog.Default(),
		clock:         Now,
		maxPollEvents: 128,
	}
}

// WithLogger sets the structured logger used for lifecycle and
// debug-level diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the monotonic time source, for deterministic
// tests of timer reconciliation.
func WithClock(now func() TimePoint) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithMaxPollEvents bounds how many readiness events the multiplexer
// drains per Wait call.
func WithMaxPollEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPollEvents = n
		}
	}
}
