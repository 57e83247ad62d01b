package opscheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cognitedata/extractor-utils-core/chunker"
	"github.com/cognitedata/extractor-utils-core/resourcecounter"
	"github.com/cognitedata/extractor-utils-core/throttler"
)

// Chunk is an immutable-by-convention batch of items submitted together to
// the Throttler. A Strategy's ConsumeChunk mutates it in place: Err records
// a chunk-level fault, and Continue marks individual items that should stay
// active (their capacity unit stays reserved) rather than being freed.
type Chunk[T any] struct {
	Items []T
	Err   error

	held []bool // held[i] == true means item i is "continued", not completed
}

func newChunk[T any](items []T) *Chunk[T] {
	return &Chunk[T]{Items: items, held: make([]bool, len(items))}
}

// Continue marks item i as not yet finished: it returns to the active set
// and its allocated capacity unit is not freed this round.
func (c *Chunk[T]) Continue(i int) { c.held[i] = true }

// Completed reports whether item i finished (and its unit should be freed).
func (c *Chunk[T]) Completed(i int) bool { return !c.held[i] }

// Strategy supplies the domain-specific behavior an OperationScheduler
// drives: how to slice the active set into chunks given freshly granted
// capacity, how to execute a chunk, how to interpret its outcome, and how
// to abandon outstanding chunks on cancellation.
type Strategy[T any] interface {
	// GetNextChunks forms chunks from carryover (items already holding a
	// reserved capacity unit from a previous round) and active (not yet
	// reserved), given granted newly-acquired units. It returns the chunks
	// to submit this round and the leftover, still-unreserved active items.
	GetNextChunks(carryover, active []T, granted int) (chunks [][]T, leftoverActive []T)

	// ConsumeChunk executes chunk (e.g. against a remote sink), setting
	// chunk.Err and calling chunk.Continue for any item that must stay
	// active. It is run on a Throttler worker goroutine, never the
	// scheduler's own planner loop.
	ConsumeChunk(ctx context.Context, chunk *Chunk[T])

	// HandleResult inspects a consumed chunk and returns newly discovered
	// items to fold into the active set. Chunk-level errors ride along as
	// data (chunk.Err); HandleResult decides what, if anything, to do
	// about them - they are never treated as scheduler faults.
	HandleResult(chunk *Chunk[T]) []T

	// AbortChunk is called, once each, for every chunk still outstanding
	// when the scheduler is cancelled.
	AbortChunk(chunk *Chunk[T])
}

// FixedChunkStrategy adapts plain consume/handle/abort callbacks into a
// Strategy whose GetNextChunks respects a fixed ChunkSize and the capacity
// granted each round, via chunker.ChunkBy. ChunkSize <= 0 means "unbounded
// within capacity" - a single chunk containing everything the round's
// capacity allows.
type FixedChunkStrategy[T any] struct {
	ChunkSize int
	Consume   func(ctx context.Context, chunk *Chunk[T])
	Handle    func(chunk *Chunk[T]) []T
	Abort     func(chunk *Chunk[T])
}

func (s *FixedChunkStrategy[T]) GetNextChunks(carryover, active []T, granted int) ([][]T, []T) {
	if granted < 0 {
		granted = 0
	}
	taken := active
	if granted < len(taken) {
		taken = taken[:granted]
	}
	leftover := active[len(taken):]

	pool := make([]T, 0, len(carryover)+len(taken))
	pool = append(pool, carryover...)
	pool = append(pool, taken...)

	var chunks [][]T
	for c := range chunker.ChunkBy(pool, s.ChunkSize) {
		chunks = append(chunks, c)
	}
	return chunks, leftover
}

func (s *FixedChunkStrategy[T]) ConsumeChunk(ctx context.Context, chunk *Chunk[T]) {
	s.Consume(ctx, chunk)
}

func (s *FixedChunkStrategy[T]) HandleResult(chunk *Chunk[T]) []T {
	if s.Handle == nil {
		return nil
	}
	return s.Handle(chunk)
}

func (s *FixedChunkStrategy[T]) AbortChunk(chunk *Chunk[T]) {
	if s.Abort != nil {
		s.Abort(chunk)
	}
}

// Stats is a point-in-time snapshot of a Scheduler's planner state, safe to
// read concurrently with a running Run.
type Stats struct {
	Active     int
	Pending    int
	Discovered int64
	Completed  int64
}

// Scheduler drives recursive exploration over items of type T. It borrows
// (does not own) a resourcecounter.Counter and a throttler.Throttler, so
// multiple Schedulers may share one admission budget and one executor.
type Scheduler[T any] struct {
	counter   *resourcecounter.Counter
	throttler *throttler.Throttler
	strategy  Strategy[T]
	logger    zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a Scheduler over a borrowed Counter and Throttler.
func New[T any](counter *resourcecounter.Counter, th *throttler.Throttler, strategy Strategy[T], logger *zerolog.Logger) *Scheduler[T] {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Scheduler[T]{counter: counter, throttler: th, strategy: strategy, logger: l}
}

// Stats returns a snapshot of the scheduler's planner state.
func (s *Scheduler[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler[T]) setStats(active, pending int, discovered, completed int64) {
	s.mu.Lock()
	s.stats = Stats{Active: active, Pending: pending, Discovered: discovered, Completed: completed}
	s.mu.Unlock()
}

// Run drives the planner loop over seed items until both the active set and
// the pending (in-flight) count are empty, or ctx is cancelled. On
// cancellation, every chunk still outstanding is passed to
// Strategy.AbortChunk exactly once, and every unit still reserved is freed
// back to the Counter - never more than has been taken.
func (s *Scheduler[T]) Run(ctx context.Context, seed []T) error {
	active := append([]T{}, seed...)
	var carryover []T
	pending := 0
	var discovered, completed int64
	toRequest := len(active)

	completionCh := make(chan *Chunk[T])
	inFlight := make(map[*Chunk[T]]struct{})

	abort := func() {
		for c := range inFlight {
			s.strategy.AbortChunk(c)
		}
		if pending > 0 {
			s.counter.Free(pending)
		}
		s.setStats(len(active)+len(carryover), 0, discovered, completed)
	}

	for len(active) > 0 || len(carryover) > 0 || pending > 0 {
		if err := ctx.Err(); err != nil {
			abort()
			return err
		}

		capacity := toRequest
		if capacity > len(active) {
			capacity = len(active)
		}
		if capacity < 0 {
			capacity = 0
		}
		block := pending == 0

		granted, err := s.counter.Take(ctx, capacity, block)
		if err != nil {
			abort()
			return err
		}

		chunks, leftoverActive := s.strategy.GetNextChunks(carryover, active, granted)
		taken := len(active) - len(leftoverActive)
		active = leftoverActive
		carryover = nil
		pending += taken

		for _, items := range chunks {
			chunk := newChunk(items)
			inFlight[chunk] = struct{}{}
			s.throttler.Enqueue(func(workerCtx context.Context) error {
				s.strategy.ConsumeChunk(workerCtx, chunk)
				// Use the planner's own ctx here, not workerCtx: the
				// Throttler is borrowed and may outlive this Run call, so
				// only the Run caller's cancellation should unblock a send
				// to nobody listening.
				select {
				case completionCh <- chunk:
				case <-ctx.Done():
				}
				return nil
			})
		}

		s.setStats(len(active)+len(carryover), pending, discovered, completed)

		if pending == 0 {
			// nothing submitted and nothing outstanding: either the active
			// set is exhausted, or capacity starvation with no in-flight
			// work to wait on - the loop condition will re-evaluate.
			toRequest = len(active)
			continue
		}

		var completedChunks []*Chunk[T]
		select {
		case c := <-completionCh:
			completedChunks = append(completedChunks, c)
		case <-ctx.Done():
			abort()
			return ctx.Err()
		}
	drain:
		for {
			select {
			case c := <-completionCh:
				completedChunks = append(completedChunks, c)
			default:
				break drain
			}
		}

		continuedThisRound := 0
		for _, c := range completedChunks {
			delete(inFlight, c)

			newItems := s.strategy.HandleResult(c)
			if len(newItems) > 0 {
				active = append(active, newItems...)
				discovered += int64(len(newItems))
			}

			for i := range c.Items {
				if c.Completed(i) {
					s.counter.Free(1)
					pending--
					completed++
				} else {
					continuedThisRound++
					carryover = append(carryover, c.Items[i])
				}
			}
		}

		if continuedThisRound > 0 {
			toRequest = 0
		} else {
			toRequest = len(active)
		}

		s.setStats(len(active)+len(carryover), pending, discovered, completed)
	}

	return nil
}
