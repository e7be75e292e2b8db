package telemetry

import "sync"

// Buffer is a bounded FIFO batch buffer. When the store is unreachable the
// buffer absorbs readings until it overflows, then drops the oldest entries:
// fresh data is worth more than stale data once connectivity returns.
type Buffer[T any] struct {
	mu      sync.Mutex
	cap     int
	items   []T
	dropped uint64
}

func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Buffer[T]{cap: capacity}
}

// Push appends one item, evicting the oldest entry on overflow.
func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.cap {
		over := len(b.items) - b.cap + 1
		b.items = b.items[over:]
		b.dropped += uint64(over)
	}
	b.items = append(b.items, v)
}

// Drain removes and returns up to max items, oldest first.
func (b *Buffer[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if max <= 0 || max > len(b.items) {
		max = len(b.items)
	}
	if max == 0 {
		return nil
	}
	out := make([]T, max)
	copy(out, b.items[:max])
	b.items = b.items[max:]
	return out
}

// Requeue puts a failed batch back at the head, trimming the oldest entries
// if the buffer would overflow.
func (b *Buffer[T]) Requeue(batch []T) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := append(append([]T{}, batch...), b.items...)
	if len(merged) > b.cap {
		b.dropped += uint64(len(merged) - b.cap)
		merged = merged[len(merged)-b.cap:]
	}
	b.items = merged
}

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Dropped counts entries lost to overflow since startup.
func (b *Buffer[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
