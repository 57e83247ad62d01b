package resourcecounter

import (
	"context"
	"sync"

	"github.com/cognitedata/extractor-utils-core/errkind"
)

// Counter is an async-acquirable, unit-weighted semaphore with dynamic
// capacity. Take, Free and SetCapacity are mutually exclusive under a single
// internal monitor. Count may transiently go negative after SetCapacity
// shrinks capacity below what is already taken; already-taken units return
// normally via Free and bring count back in line.
type Counter struct {
	mu       sync.Mutex
	count    int
	capacity int
	notify   chan struct{}
}

// New creates a Counter with the given initial capacity. Panics if capacity
// is negative.
func New(capacity int) *Counter {
	if capacity < 0 {
		panic("resourcecounter: negative initial capacity")
	}
	return &Counter{count: capacity, capacity: capacity, notify: make(chan struct{})}
}

// Take attempts to acquire up to requested units. If block is true, Take
// suspends (honoring ctx) until at least one unit is available, then returns
// an integer in [1, requested]. If block is false, Take returns immediately
// with whatever is available, in [0, requested]. Take(ctx, 0, _) always
// returns (0, nil) without taking the lock.
func (c *Counter) Take(ctx context.Context, requested int, block bool) (int, error) {
	if requested == 0 {
		return 0, nil
	}
	if requested < 0 {
		return 0, errkind.New(errkind.InvalidArgument, errInvalidRequested)
	}

	for {
		c.mu.Lock()
		if c.count > 0 {
			granted := requested
			if granted > c.count {
				granted = c.count
			}
			c.count -= granted
			c.mu.Unlock()
			return granted, nil
		}

		if !block {
			c.mu.Unlock()
			return 0, nil
		}

		ch := c.notify
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, errkind.New(errkind.Cancelled, ctx.Err())
		case <-ch:
			// woken by Free or SetCapacity, re-evaluate
		}
	}
}

// Free returns n units to the counter and wakes all waiters. Panics if n is
// negative.
func (c *Counter) Free(n int) {
	if n < 0 {
		panic("resourcecounter: negative free")
	}
	c.mu.Lock()
	c.count += n
	c.broadcastLocked()
	c.mu.Unlock()
}

// SetCapacity adjusts the capacity to capacity, applying the signed delta
// (capacity-oldCapacity) to count. This may drive count below zero;
// outstanding Take holders will still Free normally, settling count back to
// capacity. Panics if capacity is negative.
func (c *Counter) SetCapacity(capacity int) {
	if capacity < 0 {
		panic("resourcecounter: negative capacity")
	}
	c.mu.Lock()
	delta := capacity - c.capacity
	c.count += delta
	c.capacity = capacity
	c.broadcastLocked()
	c.mu.Unlock()
}

// Count returns the current (possibly negative) count, for introspection.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Capacity returns the current capacity.
func (c *Counter) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

func (c *Counter) broadcastLocked() {
	close(c.notify)
	c.notify = make(chan struct{})
}

var errInvalidRequested = invalidArgError("resourcecounter: requested units must be >= 0")

type invalidArgError string

func (e invalidArgError) Error() string { return string(e) }
