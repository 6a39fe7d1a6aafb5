package circular

// Buffer keeps the most recent values up to its capacity. Index 0 is the
// newest value.
type Buffer[T any] struct {
	capacity uint

	head uint
	size uint
	data []T
}

func NewBuffer[T any](capacity uint) *Buffer[T] {
	if capacity == 0 {
		panic("capacity must > 0")
	}
	return &Buffer[T]{
		capacity: capacity,
		data:     make([]T, capacity),
	}
}

func (b *Buffer[T]) Capacity() uint {
	return b.capacity
}

func (b *Buffer[T]) Size() uint {
	return b.size
}

// Push stores value and returns the value it evicted, if any.
func (b *Buffer[T]) Push(value T) (evicted T, ok bool) {
	if b.size == b.capacity {
		evicted, ok = b.data[b.head], true
	}
	b.data[b.head] = value
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	return evicted, ok
}

func (b *Buffer[T]) Get(idx uint) T {
	if idx >= b.size {
		panic("index out of range")
	}
	return b.data[(b.head+b.capacity-1-idx)%b.capacity]
}

// First is the newest value.
func (b *Buffer[T]) First() T {
	return b.Get(0)
}

// Last is the oldest value still held.
func (b *Buffer[T]) Last() T {
	return b.Get(b.size - 1)
}

// Data copies the held values from oldest to newest.
func (b *Buffer[T]) Data() []T {
	out := make([]T, 0, b.size)
	for i := b.size; i > 0; i-- {
		out = append(out, b.Get(i-1))
	}
	return out
}

func (b *Buffer[T]) IsEmpty() bool {
	return b.size == 0
}

func (b *Buffer[T]) IsFull() bool {
	return b.size == b.capacity
}

func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.head, b.size = 0, 0
}
