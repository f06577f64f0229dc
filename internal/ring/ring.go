// Package ring provides a fixed-capacity FIFO buffer. When full, a push
// evicts the oldest entry.
package ring

// Buffer is a bounded append-only ring. Not safe for concurrent use;
// callers hold their own locks.
type Buffer[T any] struct {
	items []T
	head  int // index of oldest entry
	size  int
}

// New creates a buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends an entry, evicting the oldest if the buffer is full.
func (b *Buffer[T]) Push(item T) {
	tail := (b.head + b.size) % len(b.items)
	b.items[tail] = item
	if b.size < len(b.items) {
		b.size++
		return
	}
	b.head = (b.head + 1) % len(b.items)
}

// Last returns the most recently pushed entry.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

// Items returns entries oldest-first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}

// Len returns the number of entries currently held.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the configured capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }
