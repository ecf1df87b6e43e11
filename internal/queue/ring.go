package queue

// ring is a growable FIFO ring buffer. It doubles its capacity when it
// reaches 70% full so bursts of enqueues never block on each other.
// Not safe for concurrent use; the Queue guards it with its own lock.
type ring[T any] struct {
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
}

// newRing creates a ring with the given initial capacity.
func newRing[T any](initialCapacity int) *ring[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &ring[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
}

// push appends an item, growing the ring if at 70% capacity.
func (r *ring[T]) push(item T) {
	threshold := (r.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if r.count+1 >= threshold {
		r.grow()
	}

	r.buf[r.tail] = item
	r.tail = (r.tail + 1) % r.capacity
	r.count++
}

// pop removes and returns the oldest item, or false when empty.
func (r *ring[T]) pop() (T, bool) {
	if r.count == 0 {
		var zero T
		return zero, false
	}

	item := r.buf[r.head]
	var zero T
	r.buf[r.head] = zero // Clear reference for GC
	r.head = (r.head + 1) % r.capacity
	r.count--

	return item, true
}

// drain removes and returns all items in FIFO order.
func (r *ring[T]) drain() []T {
	if r.count == 0 {
		return nil
	}

	out := make([]T, 0, r.count)
	for {
		item, ok := r.pop()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

// len returns the current item count.
func (r *ring[T]) len() int {
	return r.count
}

// grow doubles the ring capacity.
func (r *ring[T]) grow() {
	newCapacity := r.capacity * 2
	newBuf := make([]T, newCapacity)

	if r.count > 0 {
		if r.head < r.tail {
			copy(newBuf, r.buf[r.head:r.tail])
		} else {
			n := copy(newBuf, r.buf[r.head:])
			copy(newBuf[n:], r.buf[:r.tail])
		}
	}

	r.buf = newBuf
	r.head = 0
	r.tail = r.count
	r.capacity = newCapacity
}
