package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const nanosPerSecond = int64(time.Second)

// TimePoint is a monotonic time-point expressed as a normalized
// (seconds, nanoseconds) pair. It is independent of wall-clock changes.
type TimePoint struct {
	sec  int64
	nsec int64
}

// Now returns the current monotonic time-point.
func Now() TimePoint {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// The monotonic clock is assumed always available on a POSIX
		// system; failure here means the runtime cannot proceed.
		panic(fmt.Errorf("reactor: clock_gettime(CLOCK_MONOTONIC): %w", err))
	}
	return TimePoint{sec: int64(ts.Sec), nsec: int64(ts.Nsec)}
}

// MaxTimePoint is a sentinel meaning "never fires".
func MaxTimePoint() TimePoint {
	return TimePoint{sec: 1<<63 - 1, nsec: 999999999}
}

// MinTimePoint is the earliest representable time-point.
func MinTimePoint() TimePoint {
	return TimePoint{sec: -1 << 63, nsec: -999999999}
}

func (t TimePoint) normalize() TimePoint {
	if t.nsec >= nanosPerSecond || t.nsec <= -nanosPerSecond {
		carry := t.nsec / nanosPerSecond
		t.sec += carry
		t.nsec -= carry * nanosPerSecond
	}
	if t.sec > 0 && t.nsec < 0 {
		t.sec--
		t.nsec += nanosPerSecond
	} else if t.sec < 0 && t.nsec > 0 {
		t.sec++
		t.nsec -= nanosPerSecond
	}
	return t
}

// Add returns t+d, normalized.
func (t TimePoint) Add(d time.Duration) TimePoint {
	return TimePoint{sec: t.sec, nsec: t.nsec + int64(d)}.normalize()
}

// Sub returns the duration between t and u (t-u).
func (t TimePoint) Sub(u TimePoint) time.Duration {
	secs := t.sec - u.sec
	nsecs := t.nsec - u.nsec
	return time.Duration(secs)*time.Second + time.Duration(nsecs)
}

// Before reports whether t is strictly earlier than u.
func (t TimePoint) Before(u TimePoint) bool {
	return t.sec < u.sec || (t.sec == u.sec && t.nsec < u.nsec)
}

// After reports whether t is strictly later than u.
func (t TimePoint) After(u TimePoint) bool {
	return u.Before(t)
}

// Equal reports whether t and u denote the same instant.
func (t TimePoint) Equal(u TimePoint) bool {
	return t.sec == u.sec && t.nsec == u.nsec
}

// Unix returns the underlying (seconds, nanoseconds) pair for
// interop with kernel timer APIs. The pair is not wall-clock epoch
// time; it retains whatever origin CLOCK_MONOTONIC uses.
func (t TimePoint) Unix() (sec, nsec int64) {
	return t.sec, t.nsec
}

func (t TimePoint) String() string {
	return fmt.Sprintf("%d.%09ds", t.sec, t.nsec)
}
