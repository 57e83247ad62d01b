package periodicscheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitedata/extractor-utils-core/interval"
)

type fixedProvider time.Duration

func (f fixedProvider) Value() time.Duration { return time.Duration(f) }

func TestScheduleTaskRunsOnce(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Close()

	var runs int32
	done := make(chan struct{})
	_, err := s.ScheduleTask("once", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestSchedulePeriodicRunImmediate(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Close()

	var runs int32
	_, err := s.SchedulePeriodic("p", fixedProvider(time.Hour), func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, true)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestNameUniqueness(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Close()

	_, err := s.SchedulePeriodic("dup", fixedProvider(time.Hour), func(ctx context.Context) error { return nil }, false)
	require.NoError(t, err)

	_, err = s.SchedulePeriodic("dup", fixedProvider(time.Hour), func(ctx context.Context) error { return nil }, false)
	assert.Error(t, err)
}

func TestPauseTriggerRace(t *testing.T) {
	// literal scenario from spec.md §8 "PeriodicScheduler pause/trigger race"
	s := New(context.Background(), nil)
	defer s.Close()

	var runs int32
	name, err := s.SchedulePeriodic("", fixedProvider(time.Hour), func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, false)
	require.NoError(t, err)

	require.NoError(t, s.Pause(name, true))
	require.NoError(t, s.Trigger(name))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	require.NoError(t, s.Pause(name, false))
	time.Sleep(50 * time.Millisecond)
	// still 1: the task is now waiting on its (long) interval again, not
	// immediately re-invoked by unpausing.
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestExitAndWaitDoesNotCancelInFlight(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Close()

	started := make(chan struct{})
	finished := make(chan struct{})
	name, err := s.SchedulePeriodic("slow", fixedProvider(time.Millisecond), func(ctx context.Context) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		close(finished)
		return nil
	}, true)
	require.NoError(t, err)

	<-started
	exitErr := make(chan error, 1)
	go func() { exitErr <- s.ExitAndWait(context.Background(), name) }()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("in-flight operation was canceled")
	}
	require.NoError(t, <-exitErr)
}

func TestWaitForAllSurfacesFirstFault(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Close()

	wantErr := errors.New("boom")
	_, err := s.ScheduleTask("fails", func(ctx context.Context) error { return wantErr })
	require.NoError(t, err)

	got := s.WaitForAll(context.Background())
	require.Error(t, got)
	assert.ErrorIs(t, got, wantErr)
}

func TestWaitForAllReturnsCleanlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, nil)

	_, err := s.SchedulePeriodic("p", fixedProvider(time.Hour), func(ctx context.Context) error { return nil }, false)
	require.NoError(t, err)

	cancel()
	got := s.WaitForAll(context.Background())
	assert.NoError(t, got)
}

func TestIntervalInfiniteMeansPaused(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Close()

	var runs int32
	_, err := s.SchedulePeriodic("never", fixedProvider(interval.Infinite), func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, false)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
}
