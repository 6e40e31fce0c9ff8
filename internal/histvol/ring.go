package histvol

// ring is a fixed-capacity overwrite ring of price samples. Capacity is
// rounded up to the next power of two for bitwise index masking. Callers
// synchronize access; the Tracker guards each ring with its mutex.
type ring struct {
	buf  []float64
	mask uint64
	head uint64 // total pushes; oldest retained sample is head-len(buf)
}

func newRing(capacity int) *ring {
	c := nextPow2(capacity)
	if c < 2 {
		c = 2
	}
	return &ring{
		buf:  make([]float64, c),
		mask: uint64(c - 1),
	}
}

// push appends a sample, overwriting the oldest when full.
func (r *ring) push(v float64) {
	r.buf[r.head&r.mask] = v
	r.head++
}

// snapshot returns the retained samples in insertion order.
func (r *ring) snapshot() []float64 {
	n := r.head
	if n > uint64(len(r.buf)) {
		n = uint64(len(r.buf))
	}
	out := make([]float64, 0, n)
	for i := r.head - n; i < r.head; i++ {
		out = append(out, r.buf[i&r.mask])
	}
	return out
}

func nextPow2(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}
