package opscheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitedata/extractor-utils-core/resourcecounter"
	"github.com/cognitedata/extractor-utils-core/throttler"
)

func newHarness(t *testing.T, capacity int) (*resourcecounter.Counter, *throttler.Throttler, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	counter := resourcecounter.New(capacity)
	th := throttler.New(ctx, throttler.Config{})
	return counter, th, cancel
}

func TestOperationSchedulerCompletesAllItems(t *testing.T) {
	counter, th, cancel := newHarness(t, 4)
	defer cancel()

	var mu sync.Mutex
	var visited []int

	strategy := &FixedChunkStrategy[int]{
		ChunkSize: 2,
		Consume: func(ctx context.Context, chunk *Chunk[int]) {
			mu.Lock()
			visited = append(visited, chunk.Items...)
			mu.Unlock()
		},
	}

	s := New(counter, th, strategy, nil)
	err := s.Run(context.Background(), []int{1, 2, 3, 4, 5})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, visited)
	assert.Equal(t, 4, counter.Count())

	stats := s.Stats()
	assert.Equal(t, int64(5), stats.Completed)
	assert.Equal(t, 0, stats.Pending)
}

func TestOperationSchedulerContinuedItems(t *testing.T) {
	// literal scenario from spec.md §8 "OperationScheduler continued items"
	counter, th, cancel := newHarness(t, 10)
	defer cancel()

	var mu sync.Mutex
	attempts := map[int]int{}

	strategy := &FixedChunkStrategy[int]{
		ChunkSize: 2,
		Consume: func(ctx context.Context, chunk *Chunk[int]) {
			mu.Lock()
			for i, item := range chunk.Items {
				attempts[item]++
				if item == 1 && attempts[item] == 1 {
					chunk.Continue(i) // item 1 needs a second round
				}
			}
			mu.Unlock()
		},
	}

	s := New(counter, th, strategy, nil)
	err := s.Run(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts[1])
	assert.Equal(t, 1, attempts[2])
	assert.Equal(t, 1, attempts[3])
	assert.Equal(t, 10, counter.Count())

	stats := s.Stats()
	assert.Equal(t, int64(3), stats.Completed)
}

func TestOperationSchedulerDiscoveredItemsFoldIn(t *testing.T) {
	counter, th, cancel := newHarness(t, 8)
	defer cancel()

	var mu sync.Mutex
	seen := map[int]bool{}

	strategy := &FixedChunkStrategy[int]{
		ChunkSize: 4,
		Consume: func(ctx context.Context, chunk *Chunk[int]) {
			mu.Lock()
			for _, item := range chunk.Items {
				seen[item] = true
			}
			mu.Unlock()
		},
		Handle: func(chunk *Chunk[int]) []int {
			var discovered []int
			for _, item := range chunk.Items {
				if item < 3 {
					discovered = append(discovered, item+10)
				}
			}
			return discovered
		},
	}

	s := New(counter, th, strategy, nil)
	err := s.Run(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen[11])
	assert.True(t, seen[12])
	assert.Equal(t, 8, counter.Count())
}

func TestOperationSchedulerAbortsOnCancel(t *testing.T) {
	counter, th, cancel := newHarness(t, 2)
	defer cancel()

	release := make(chan struct{})
	var aborted []int
	var mu sync.Mutex

	strategy := &FixedChunkStrategy[int]{
		ChunkSize: 1,
		Consume: func(ctx context.Context, chunk *Chunk[int]) {
			<-release
		},
		Abort: func(chunk *Chunk[int]) {
			mu.Lock()
			aborted = append(aborted, chunk.Items...)
			mu.Unlock()
		},
	}

	s := New(counter, th, strategy, nil)
	runCtx, runCancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(runCtx, []int{1, 2, 3, 4}) }()

	time.Sleep(30 * time.Millisecond)
	runCancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, counter.Count())

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, aborted, 2)
}
