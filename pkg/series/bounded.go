// Package series provides a fixed-capacity ring buffer used for per-symbol history.
package series

// Bounded is a fixed-capacity ring buffer. When full, Push evicts the oldest item.
// It is not safe for concurrent use; callers serialize access (see internal/registry).
type Bounded[T any] struct {
	buf   []T
	start int // index of the oldest item
	size  int
}

// NewBounded creates a series holding at most capacity items (minimum 1).
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{buf: make([]T, capacity)}
}

// Push appends item, evicting the oldest entry when at capacity.
func (b *Bounded[T]) Push(item T) {
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = item
		b.size++
		return
	}
	b.buf[b.start] = item
	b.start = (b.start + 1) % len(b.buf)
}

// ReplaceOrPush replaces the newest item when its key equals key(item), otherwise pushes.
func (b *Bounded[T]) ReplaceOrPush(item T, key func(T) int64) {
	if b.size > 0 {
		last := (b.start + b.size - 1) % len(b.buf)
		if key(b.buf[last]) == key(item) {
			b.buf[last] = item
			return
		}
	}
	b.Push(item)
}

// Last returns the newest item.
func (b *Bounded[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.buf[(b.start+b.size-1)%len(b.buf)], true
}

// Snapshot returns a copy ordered oldest to newest.
func (b *Bounded[T]) Snapshot() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.buf[(b.start+i)%len(b.buf)]
	}
	return out
}

// Len returns the number of stored items.
func (b *Bounded[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Bounded[T]) Cap() int { return len(b.buf) }

// Reset drops all items and releases references held by the backing array.
func (b *Bounded[T]) Reset() {
	var zero T
	for i := range b.buf {
		b.buf[i] = zero
	}
	b.start, b.size = 0, 0
}
