package utils

// Deque is a growable ring buffer. Capacity stays a power of two so index wrap-around is a
// cheap modulo.
type Deque[T any] struct {
	start, end, len uint64
	data            []T
}

// NewDeque returns an empty deque.
func NewDeque[T any]() *Deque[T] {
	return &Deque[T]{data: make([]T, 1)}
}

func (d *Deque[T]) capacity() uint64 { return uint64(len(d.data)) }

func (d *Deque[T]) resize(c uint64) {
	data := make([]T, c)
	d.copyTo(data)
	d.data = data
	d.start = 0
	d.end = d.len % c
}

func (d *Deque[T]) copyTo(dst []T) {
	if d.len == 0 {
		return
	}
	if d.start < d.end {
		copy(dst, d.data[d.start:d.end])
		return
	}
	n := copy(dst, d.data[d.start:])
	copy(dst[n:], d.data[:d.end])
}

func (d *Deque[T]) grow() {
	if d.len == d.capacity() {
		d.resize(d.capacity() << 1)
	}
}

func (d *Deque[T]) shrink() {
	if c := d.capacity(); c > 1 && c>>2 > d.len {
		d.resize(c >> 1)
	}
}

// PushBack appends v.
func (d *Deque[T]) PushBack(v T) {
	d.grow()
	d.data[d.end] = v
	d.end = (d.end + 1) % d.capacity()
	d.len++
}

// PushFront prepends v.
func (d *Deque[T]) PushFront(v T) {
	d.grow()
	d.start = (d.start + d.capacity() - 1) % d.capacity()
	d.data[d.start] = v
	d.len++
}

// PopFront removes the head.
func (d *Deque[T]) PopFront() (T, bool) {
	var zero T
	if d.len == 0 {
		return zero, false
	}
	v := d.data[d.start]
	d.data[d.start] = zero
	d.start = (d.start + 1) % d.capacity()
	d.len--
	d.shrink()
	return v, true
}

// PopBack removes the tail.
func (d *Deque[T]) PopBack() (T, bool) {
	var zero T
	if d.len == 0 {
		return zero, false
	}
	d.end = (d.end + d.capacity() - 1) % d.capacity()
	v := d.data[d.end]
	d.data[d.end] = zero
	d.len--
	d.shrink()
	return v, true
}

// Head peeks the head.
func (d *Deque[T]) Head() (T, bool) {
	var zero T
	if d.len == 0 {
		return zero, false
	}
	return d.data[d.start], true
}

// Back peeks the tail.
func (d *Deque[T]) Back() (T, bool) {
	var zero T
	if d.len == 0 {
		return zero, false
	}
	return d.data[(d.end+d.capacity()-1)%d.capacity()], true
}

// Len returns the number of elements.
func (d *Deque[T]) Len() uint64 { return d.len }

// Slice copies the elements in order.
func (d *Deque[T]) Slice() []T {
	out := make([]T, d.len)
	d.copyTo(out)
	return out
}
