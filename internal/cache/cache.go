package cache

import "sync/atomic"

// Snapshot is a lock-free, read-optimized container holding any
// immutable value. Readers get whatever was stored last; writers swap
// the whole value at once.
type Snapshot[T any] struct{ v atomic.Value }

// Load returns the stored value, or the zero value if nothing has been
// stored yet.
func (s *Snapshot[T]) Load() T {
	v := s.v.Load()
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// Store atomically swaps in the new value.
func (s *Snapshot[T]) Store(v T) {
	s.v.Store(v)
}
