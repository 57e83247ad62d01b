package chunker

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ChunkBy yields items in batches of at most maxSize, preserving order. The
// final batch may be smaller. maxSize <= 0 is treated as "unbounded" - a
// single batch containing every item is yielded.
func ChunkBy[T any](items []T, maxSize int) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		if len(items) == 0 {
			return
		}
		if maxSize <= 0 {
			yield(items)
			return
		}
		for i := 0; i < len(items); i += maxSize {
			end := min(i+maxSize, len(items))
			if !yield(items[i:end]) {
				return
			}
		}
	}
}

// KeyValues pairs a key with its ordered values; it is both the input
// element type and the element type of each emitted group, for
// ChunkByKeyValues.
type KeyValues[K any, V any] struct {
	Key    K
	Values []V
}

// ChunkByKeyValues groups a key -> values stream into batches where each
// batch contains at most maxKeys key entries and is closed as soon as its
// total value count reaches maxPerList, preserving key and value order.
// Empty value lists are dropped.
//
// When a single key's values exceed maxPerList, they are split into
// maxPerList-sized pieces (the final piece may be smaller); each full-sized
// piece closes out its own batch immediately. A key's value list that
// already fits within maxPerList is kept atomic and appended to whatever
// batch is currently open - this means a batch's total value count exceeds
// maxPerList whenever such a whole key joins a batch that already holds
// values, e.g. when a split key's trailing remainder is joined by a
// subsequent whole key (see literal scenario in spec.md §8,
// "Chunking"; this interleaving is documented, deliberate legacy behavior,
// not a bug to fix - see DESIGN.md). Every input value is guaranteed to
// appear in exactly one emitted batch.
//
// maxPerList <= 0 disables the value-count trigger; maxKeys <= 0 disables
// the key-count trigger. At least one must be positive, or chunking never
// terminates a batch until input is exhausted (which is itself well-defined
// behavior: one final batch).
func ChunkByKeyValues[K any, V any](pairs []KeyValues[K, V], maxPerList, maxKeys int) iter.Seq[[]KeyValues[K, V]] {
	return func(yield func([]KeyValues[K, V]) bool) {
		var group []KeyValues[K, V]
		groupValues := 0

		emit := func() bool {
			if len(group) == 0 {
				return true
			}
			ok := yield(group)
			group = nil
			groupValues = 0
			return ok
		}

		for _, pair := range pairs {
			values := pair.Values
			if len(values) == 0 {
				continue
			}

			var pieces [][]V
			if maxPerList > 0 && len(values) > maxPerList {
				for i := 0; i < len(values); i += maxPerList {
					end := min(i+maxPerList, len(values))
					pieces = append(pieces, values[i:end])
				}
			} else {
				pieces = [][]V{values}
			}

			for _, piece := range pieces {
				group = append(group, KeyValues[K, V]{Key: pair.Key, Values: piece})
				groupValues += len(piece)

				closeNow := (maxKeys > 0 && len(group) >= maxKeys) ||
					(maxPerList > 0 && groupValues >= maxPerList)
				if closeNow {
					if !emit() {
						return
					}
				}
			}
		}

		emit()
	}
}

// ErrRunThrottledCanceled is returned by RunThrottled when cancellation was
// observed between task completions, before all generators ran.
var ErrRunThrottledCanceled = errors.New("chunker: run throttled: canceled")

// RunThrottled runs the given generators with strict parallelism:
// at most parallelism run concurrently at any time, and a new one starts
// only once a running one completes. The first non-nil error from a
// generator is returned (after in-flight generators at that point drain);
// no further generators are started once one has failed. onComplete, if
// non-nil, is invoked after every
// generator completes (including failures), with its index and error.
// Cancellation is honored between task completions. parallelism <= 0 is
// treated as 1.
func RunThrottled(ctx context.Context, generators []func(context.Context) error, parallelism int, onComplete func(index int, err error)) error {
	if parallelism <= 0 {
		parallelism = 1
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	canceled := false

	for i, gen := range generators {
		select {
		case <-ctx.Done():
			canceled = true
		default:
		}
		if canceled {
			break
		}

		select {
		case <-ctx.Done():
			canceled = true
		case sem <- struct{}{}:
		}
		if canceled {
			break
		}

		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			<-sem
			break
		}

		wg.Add(1)
		go func(i int, gen func(context.Context) error) {
			defer wg.Done()
			defer func() { <-sem }()
			err := gen(ctx)
			if onComplete != nil {
				onComplete(i, err)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i, gen)
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if canceled {
		return ErrRunThrottledCanceled
	}
	return nil
}
