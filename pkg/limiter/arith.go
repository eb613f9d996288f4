package limiter

import "math/bits"

// Quota arithmetic saturates instead of wrapping. A limiter configured
// near the uint64 ceiling clamps at the ceiling rather than overflowing
// into a tiny quota, and elapsed-time math never underflows when a
// persisted timestamp is ahead of the current clock.

func satAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func satMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return ^uint64(0)
	}
	return lo
}
