//go:build linux

package util

// DeltaU64 computes now-prev, clamping to 0 when the counter went
// backwards (now < prev, e.g. after a wrap or reset).
func DeltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	return 0
}
