package failurebudget

import (
	"context"
	"math"
	"sync"

	"github.com/cognitedata/extractor-utils-core/errkind"
)

// Budget tracks unique failed keys of type K against a percentage of a
// moving total. Once the failed set exceeds floor(total*pct/100), it calls
// its linked cancel function exactly once. pct must stay within [0,100].
type Budget[K comparable] struct {
	mu          sync.Mutex
	failedKeys  map[K]struct{}
	total       int64
	pct         float64
	cancel      context.CancelFunc
	tripped     bool
}

// New creates a Budget with an initial total and percentage, linked to
// cancel. cancel is invoked (once) when the budget is first exceeded.
func New[K comparable](total int64, pct float64, cancel context.CancelFunc) (*Budget[K], error) {
	if pct < 0 || pct > 100 {
		return nil, errkind.New(errkind.InvalidArgument, errPctRange)
	}
	return &Budget[K]{
		failedKeys: make(map[K]struct{}),
		total:      total,
		pct:        pct,
		cancel:     cancel,
	}, nil
}

// MarkFailed idempotently records k as failed. Re-marking an already-failed
// key does not consume additional budget. Tripping the linked cancel is a
// side effect of crossing the ceiling, never reported as an error.
func (b *Budget[K]) MarkFailed(k K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failedKeys[k] = struct{}{}
	b.checkLocked()
}

// UpdateBudget resets the ceiling. If validate is true, the new ceiling is
// immediately checked against the currently failed set (which may trip the
// budget right away); otherwise the new ceiling only takes effect on the
// next MarkFailed.
func (b *Budget[K]) UpdateBudget(pct float64, total int64, validate bool) error {
	if pct < 0 || pct > 100 {
		return errkind.New(errkind.InvalidArgument, errPctRange)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pct = pct
	b.total = total
	if validate {
		b.checkLocked()
	}
	return nil
}

// checkLocked must be called with b.mu held.
func (b *Budget[K]) checkLocked() {
	if b.tripped {
		return
	}
	budget := int64(math.Floor(float64(b.total) * b.pct / 100))
	if int64(len(b.failedKeys)) > budget {
		b.tripped = true
		if b.cancel != nil {
			b.cancel()
		}
	}
}

// Tripped reports whether the budget has been exceeded.
func (b *Budget[K]) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// FailedCount returns the number of distinct failed keys recorded so far.
func (b *Budget[K]) FailedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.failedKeys)
}

// Ceiling returns the current floor(total*pct/100).
func (b *Budget[K]) Ceiling() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(math.Floor(float64(b.total) * b.pct / 100))
}

var errPctRange = invalidArgError("failurebudget: pct must be within [0, 100]")

type invalidArgError string

func (e invalidArgError) Error() string { return string(e) }
