package ppg

// Ring is a fixed-capacity FIFO buffer over float64 samples. Push is O(1) and
// evicts the oldest value once the buffer is full, so memory stays bounded
// regardless of how many samples flow through. Values and statistics helpers
// snapshot in oldest-to-newest order.
type Ring struct {
	values []float64
	head   int // index of the oldest element
	count  int
}

// NewRing allocates a ring holding at most capacity values.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{values: make([]float64, capacity)}
}

// Push appends a value, evicting the oldest when full.
func (r *Ring) Push(v float64) {
	if r.count < len(r.values) {
		r.values[(r.head+r.count)%len(r.values)] = v
		r.count++
		return
	}
	r.values[r.head] = v
	r.head = (r.head + 1) % len(r.values)
}

// Len returns the number of stored values.
func (r *Ring) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.values) }

// Full reports whether the ring is at capacity.
func (r *Ring) Full() bool { return r.count == len(r.values) }

// At returns the i-th stored value, 0 being the oldest. Out-of-range indices
// return 0 rather than panicking; callers bound their loops with Len.
func (r *Ring) At(i int) float64 {
	if i < 0 || i >= r.count {
		return 0
	}
	return r.values[(r.head+i)%len(r.values)]
}

// Last returns the newest value, or 0 when empty.
func (r *Ring) Last() float64 {
	if r.count == 0 {
		return 0
	}
	return r.At(r.count - 1)
}

// Values returns a copy of the contents, oldest first.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Tail returns a copy of the newest n values, oldest first. When fewer than n
// values are stored, all of them are returned.
func (r *Ring) Tail(n int) []float64 {
	if n > r.count {
		n = r.count
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(r.count - n + i)
	}
	return out
}

// Min returns the smallest stored value, or 0 when empty.
func (r *Ring) Min() float64 {
	if r.count == 0 {
		return 0
	}
	m := r.At(0)
	for i := 1; i < r.count; i++ {
		if v := r.At(i); v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest stored value, or 0 when empty.
func (r *Ring) Max() float64 {
	if r.count == 0 {
		return 0
	}
	m := r.At(0)
	for i := 1; i < r.count; i++ {
		if v := r.At(i); v > m {
			m = v
		}
	}
	return m
}

// Mean returns the arithmetic mean, or 0 when empty.
func (r *Ring) Mean() float64 {
	if r.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.count; i++ {
		sum += r.At(i)
	}
	return sum / float64(r.count)
}

// Clear discards all stored values while keeping the capacity.
func (r *Ring) Clear() {
	r.head = 0
	r.count = 0
}
