// Package ringbuf provides a generic preallocated append buffer used
// as the per-batch transfer list for GPU renderer output (atlas updates
// and draw instances), avoiding a grow-by-append allocation inside the
// hot batching loop.
package ringbuf

// Buffer is a preallocated slice-backed list filled by Append (which
// reallocates, raising Cap, once the preallocated room is used up) and
// emptied in O(1) by Reset. Unlike a true ring buffer it
// does not wrap; a batch is always fully drained (Reset) before reuse,
// which is all the GPU renderer's batching protocol needs.
type Buffer[T any] struct {
	Data []T
	Len  int64
	Cap  int64
}

// NewBuffer allocates a buffer with the given capacity.
func NewBuffer[T any](capacity int64) *Buffer[T] {
	return &Buffer[T]{
		Data: make([]T, capacity),
		Cap:  capacity,
	}
}

// Append adds x to the buffer, growing the backing array if x does not
// fit in the remaining capacity.
func (b *Buffer[T]) Append(x ...T) {
	needed := b.Len + int64(len(x))
	if needed > b.Cap {
		grown := make([]T, needed)
		copy(grown, b.Data[:b.Len])
		b.Data = grown
		b.Cap = needed
	}
	copy(b.Data[b.Len:], x)
	b.Len += int64(len(x))
}

// Reset empties the buffer without releasing the backing array.
func (b *Buffer[T]) Reset() {
	b.Len = 0
}

// Slice returns the live portion of the buffer. It is a view, not a copy;
// it is only valid until the next Append or Reset.
func (b *Buffer[T]) Slice() []T {
	return b.Data[:b.Len]
}
