package blend

// pairScales returns the time scales that keep two inputs of durations d0
// and d1 in step while blended at weight w toward the second input. Both
// inputs then finish a cycle together, in d0/s0 == d1/s1 seconds. The
// caller guarantees d0 and d1 are positive.
func pairScales(d0, d1, w float32) (s0, s1 float32) {
	target := (1-w)*d1 + w*d0
	return target / d1, target / d0
}
