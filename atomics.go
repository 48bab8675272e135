package reactor

import "sync/atomic"

// atomicFetchOrUint32 performs an atomic fetch-then-or, returning the
// value observed before the OR was applied. sync/atomic's Uint32 has
// no native Or in the language version this module targets, so the
// read-modify-write is expressed as a CAS retry loop, same as the
// bit-flag protocols in spec.md are defined against (fetch_add used
// where addition coincides with OR because the low two state bits
// are only ever set, never incremented past 1).
func atomicFetchOrUint32(v *atomic.Uint32, bits uint32) uint32 {
	for {
		old := v.Load()
		if old&bits == bits {
			return old
		}
		if v.CompareAndSwap(old, old|bits) {
			return old
		}
	}
}
