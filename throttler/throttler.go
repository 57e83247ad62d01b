package throttler

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/cognitedata/extractor-utils-core/internal/ring"
)

// Generator is a unit of work submitted to a Throttler. It receives the
// Throttler's driving context, which is canceled when the caller tears the
// Throttler down.
type Generator func(ctx context.Context) error

// TaskResult records the scheduling and outcome of one enqueued Generator.
// Index is assigned in enqueue order.
type TaskResult struct {
	Index          int
	StartTime      time.Time
	CompletionTime time.Time
	Err            error
}

// Completed reports whether the task has finished.
func (r TaskResult) Completed() bool { return !r.CompletionTime.IsZero() }

// Config is the immutable configuration of a Throttler.
type Config struct {
	// MaxParallel caps concurrently-running tasks. 0 disables the cap.
	MaxParallel int
	// MaxPerUnit caps the EWMA-discounted count of tasks completed per Unit.
	// 0 disables this ceiling.
	MaxPerUnit int
	// MaxUsagePerUnit caps the EWMA-discounted fraction of Unit spent
	// executing tasks. 0 disables this ceiling.
	MaxUsagePerUnit float64
	// Unit is the averaging window base for MaxPerUnit/MaxUsagePerUnit. 0
	// disables both rate ceilings regardless of their configured values.
	Unit time.Duration
	// QuitOnFailure stops scheduling new tasks, without canceling
	// already-running ones, as soon as any task fails.
	QuitOnFailure bool
	// Logger receives structured scheduling diagnostics. Nil uses a no-op
	// logger.
	Logger *zerolog.Logger
}

// retentionWindows is how many Unit-widths of history to retain before bulk
// eviction; 2^-retentionWindows (about 9.3e-10) is just below the 1e-9
// discount floor.
const retentionWindows = 30

type queuedTask struct {
	gen      Generator
	resultCh chan TaskResult // buffered 1; nil for plain Enqueue
}

// Throttler is a bounded-parallel task executor. It is safe for concurrent
// use by multiple goroutines calling Enqueue/EnqueueAndWait, and owns its
// own queue and running-task bookkeeping exclusively.
type Throttler struct {
	cfg    Config
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	queue       []queuedTask
	pushNotify  chan struct{}
	closed      bool
	stopSchedule bool
	running     int
	nextIndex   int
	history     []TaskResult      // parallel to completionNanos, oldest first
	completionNanos *ring.Buffer[int64]
	errs        *multierror.Error

	wg     sync.WaitGroup
	doneCh chan struct{}
}

// New creates a Throttler and starts its supervisor loop. The supervisor
// runs until WaitForCompletion is called (graceful) or ctx is canceled
// (immediate: no further tasks are scheduled, but already-running ones are
// allowed to finish against the same ctx they started with).
func New(ctx context.Context, cfg Config) *Throttler {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	runCtx, cancel := context.WithCancel(ctx)
	t := &Throttler{
		cfg:             cfg,
		logger:          logger,
		ctx:             runCtx,
		cancel:          cancel,
		pushNotify:      make(chan struct{}),
		doneCh:          make(chan struct{}),
		completionNanos: ring.New[int64](8),
	}

	go t.run()

	return t
}

// Enqueue appends gen to the queue. It never blocks.
func (t *Throttler) Enqueue(gen Generator) {
	t.enqueue(gen, nil)
}

// EnqueueAndWait appends gen to the queue and blocks until it completes (or
// ctx is canceled). The returned error is the task's own failure, if any -
// independent of Config.QuitOnFailure, which only governs whether *other*
// tasks continue to be scheduled.
func (t *Throttler) EnqueueAndWait(ctx context.Context, gen Generator) (TaskResult, error) {
	resultCh := make(chan TaskResult, 1)
	t.enqueue(gen, resultCh)

	select {
	case <-ctx.Done():
		return TaskResult{}, ctx.Err()
	case result := <-resultCh:
		return result, result.Err
	}
}

func (t *Throttler) enqueue(gen Generator, resultCh chan TaskResult) {
	t.mu.Lock()
	t.queue = append(t.queue, queuedTask{gen: gen, resultCh: resultCh})
	t.notifyLocked()
	t.mu.Unlock()
}

// WaitForCompletion closes the queue (Enqueue/EnqueueAndWait after this
// point will still accept work already in flight, but the supervisor will
// stop once the queue drains) and blocks until every scheduled task has
// completed. It returns an aggregate of all task failures if
// Config.QuitOnFailure is set and at least one task failed; otherwise nil.
func (t *Throttler) WaitForCompletion(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.notifyLocked()
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.doneCh:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cfg.QuitOnFailure && t.errs != nil {
		return t.errs.ErrorOrNil()
	}
	return nil
}

// History returns a snapshot of the TaskResults still retained, in
// completion order. While a rate ceiling is active, results that completed
// more than retentionWindows Units ago are discarded and no longer appear.
func (t *Throttler) History() []TaskResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TaskResult, len(t.history))
	copy(out, t.history)
	return out
}

// Running returns the current number of in-flight tasks.
func (t *Throttler) Running() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Throttler) notifyLocked() {
	close(t.pushNotify)
	t.pushNotify = make(chan struct{})
}

func (t *Throttler) run() {
	defer close(t.doneCh)
	defer t.wg.Wait()

	for {
		t.mu.Lock()
		switch {
		case t.ctx.Err() != nil:
			// immediate shutdown: stop scheduling, regardless of queue state
			t.mu.Unlock()
			return

		case t.stopSchedule || (len(t.queue) == 0 && t.closed):
			t.mu.Unlock()
			return

		case len(t.queue) == 0 || t.stopSchedule:
			ch := t.pushNotify
			t.mu.Unlock()
			select {
			case <-ch:
			case <-t.ctx.Done():
			}

		case !t.allowScheduleLocked(time.Now()):
			unit := t.cfg.Unit
			if unit <= 0 {
				unit = time.Second
			}
			ch := t.pushNotify
			t.mu.Unlock()
			timer := time.NewTimer(unit)
			select {
			case <-ch:
			case <-t.ctx.Done():
			case <-timer.C:
			}
			timer.Stop()

		default:
			item := t.queue[0]
			t.queue = t.queue[1:]
			idx := t.nextIndex
			t.nextIndex++
			t.running++
			t.mu.Unlock()

			t.wg.Add(1)
			go t.runTask(idx, item)
		}
	}
}

func (t *Throttler) runTask(idx int, item queuedTask) {
	defer t.wg.Done()

	start := time.Now()
	err := item.gen(t.ctx)

	t.mu.Lock()
	completion := time.Now()
	result := TaskResult{Index: idx, StartTime: start, CompletionTime: completion, Err: err}
	t.history = append(t.history, result)
	t.completionNanos.Append(completion.UnixNano())
	t.running--
	if err != nil {
		t.errs = multierror.Append(t.errs, err)
		if t.cfg.QuitOnFailure {
			t.stopSchedule = true
			t.logger.Warn().Int("index", idx).Err(err).Msg("throttler: quitOnFailure tripped")
		}
	}
	t.notifyLocked()
	t.mu.Unlock()

	if item.resultCh != nil {
		item.resultCh <- result
	}
}

// allowScheduleLocked must be called with t.mu held.
func (t *Throttler) allowScheduleLocked(now time.Time) bool {
	if t.cfg.MaxParallel > 0 && t.running >= t.cfg.MaxParallel {
		return false
	}

	if t.cfg.Unit <= 0 || (t.cfg.MaxPerUnit <= 0 && t.cfg.MaxUsagePerUnit <= 0) {
		return true
	}

	// Bulk-evict entries whose completion is old enough that even a
	// StartTime-based discount (StartTime <= CompletionTime, so its
	// discount can only be smaller) has decayed below relevance. This
	// keeps history from growing without bound over a long-lived
	// Throttler. completionNanos stays in lockstep with history: both are
	// appended only in runTask, under t.mu.
	cutoff := now.Add(-retentionWindows * t.cfg.Unit).UnixNano()
	if idx := t.completionNanos.Search(cutoff); idx > 0 {
		t.completionNanos.RemoveBefore(idx)
		t.history = t.history[idx:]
	}

	unit := t.cfg.Unit.Seconds()
	var sumCount, sumUsage float64
	for _, r := range t.history {
		diffUnits := now.Sub(r.StartTime).Seconds() / unit
		discount := math.Pow(2, -math.Floor(diffUnits))
		if discount < 1e-9 {
			continue // negligible contribution, but not yet bulk-evicted
		}
		sumCount += discount
		usage := r.CompletionTime.Sub(r.StartTime).Seconds()
		sumUsage += (usage / unit) * discount
	}

	if t.cfg.MaxPerUnit > 0 && sumCount > float64(t.cfg.MaxPerUnit) {
		return false
	}
	if t.cfg.MaxUsagePerUnit > 0 && sumUsage > t.cfg.MaxUsagePerUnit {
		return false
	}
	return true
}
