package reactor

import (
	"testing"
	"time"
)

func TestTimePointNormalizePositive(t *testing.T) {
	tp := TimePoint{sec: 1, nsec: int64(2500 * time.Millisecond)}
	tp = tp.normalize()
	if tp.sec != 3 || tp.nsec != 500000000 {
		t.Fatalf("got sec=%d nsec=%d, want sec=3 nsec=500000000", tp.sec, tp.nsec)
	}
}

func TestTimePointNormalizeNegativeNanos(t *testing.T) {
	tp := TimePoint{sec: 2, nsec: -1}
	tp = tp.normalize()
	if tp.sec != 1 || tp.nsec != 999999999 {
		t.Fatalf("got sec=%d nsec=%d, want sec=1 nsec=999999999", tp.sec, tp.nsec)
	}
}

func TestTimePointOrdering(t *testing.T) {
	a := TimePoint{sec: 1, nsec: 0}
	b := TimePoint{sec: 1, nsec: 1}
	if !a.Before(b) {
		t.Fatal("expected a before b")
	}
	if !b.After(a) {
		t.Fatal("expected b after a")
	}
	if a.Equal(b) {
		t.Fatal("a should not equal b")
	}
}

func TestTimePointAddSub(t *testing.T) {
	a := TimePoint{sec: 10, nsec: 0}
	b := a.Add(1500 * time.Millisecond)
	if b.sec != 11 || b.nsec != 500000000 {
		t.Fatalf("got sec=%d nsec=%d", b.sec, b.nsec)
	}
	if d := b.Sub(a); d != 1500*time.Millisecond {
		t.Fatalf("got duration %v, want 1.5s", d)
	}
}

func TestNowIsMonotonic(t *testing.T) {
	a := Now()
	b := Now()
	if b.Before(a) {
		t.Fatal("Now() must be non-decreasing")
	}
}

func TestSentinels(t *testing.T) {
	if !MinTimePoint().Before(Now()) {
		t.Fatal("MinTimePoint should be before any real time-point")
	}
	if !Now().Before(MaxTimePoint()) {
		t.Fatal("MaxTimePoint should be after any real time-point")
	}
}
