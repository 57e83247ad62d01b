// Package ring implements a small append-only growable buffer over an
// ordered element type, specialized for exactly one job: the Throttler's
// completion-timestamp history. Completions are appended in completion
// order (non-decreasing, since they are assigned under the same lock that
// appends them), so a single binary search finds the prefix that has
// decayed below relevance and RemoveBefore discards it in bulk. Nothing
// here needs to insert out of order, so there is no general Insert - that
// would be solving a problem this codebase doesn't have.
package ring

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Buffer holds a sorted-ascending run of values, with cheap bulk eviction
// of the oldest entries.
type Buffer[E constraints.Ordered] struct {
	s   []E
	off int // index of the oldest live element in s
}

// New creates an empty Buffer with initial room for size elements.
func New[E constraints.Ordered](size int) *Buffer[E] {
	if size <= 0 {
		panic(`ring: size must be positive`)
	}
	return &Buffer[E]{s: make([]E, 0, size)}
}

// Len returns the number of live elements.
func (b *Buffer[E]) Len() int { return len(b.s) - b.off }

// Get returns the i'th oldest live element (0 = oldest).
func (b *Buffer[E]) Get(i int) E {
	if i < 0 || i >= b.Len() {
		panic(`ring: get: index out of range`)
	}
	return b.s[b.off+i]
}

// Slice returns the buffer's live contents, oldest first. It aliases the
// buffer's backing array and is only valid until the next Append or
// RemoveBefore.
func (b *Buffer[E]) Slice() []E { return b.s[b.off:] }

// Search returns the index of the first live element >= value, assuming
// the buffer is sorted ascending (as Append maintains).
func (b *Buffer[E]) Search(value E) int {
	return sort.Search(b.Len(), func(i int) bool {
		return b.Get(i) >= value
	})
}

// RemoveBefore discards the index oldest live elements.
func (b *Buffer[E]) RemoveBefore(index int) {
	if index < 0 || index > b.Len() {
		panic(`ring: remove before: index out of range`)
	}
	b.off += index

	// Once the discarded prefix dominates the backing array, compact it
	// away - otherwise a long-lived Throttler retains an ever-growing
	// array behind a window that never gets any wider.
	if b.off > 0 && b.off*2 >= len(b.s) {
		n := copy(b.s, b.s[b.off:])
		b.s = b.s[:n]
		b.off = 0
	}
}

// Append adds value to the end of the buffer.
func (b *Buffer[E]) Append(value E) {
	b.s = append(b.s, value)
}
