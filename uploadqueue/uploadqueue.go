package uploadqueue

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognitedata/extractor-utils-core/errkind"
	"github.com/cognitedata/extractor-utils-core/interval"
)

// shutdownFlushTimeout bounds how long Close waits before logging a warning
// about a slow final flush. It never abandons the flush.
const shutdownFlushTimeout = 60 * time.Second

// Result is the outcome of a single flush.
type Result[T any] struct {
	Uploaded []T
	Skipped  []T
	Err      error
}

// Uploader is the per-variant upload call a Queue drives. ProbeConnectivity
// backs spill recovery: a cheap call used to decide whether it is worth
// trying to redeliver spilled batches.
type Uploader[T any] interface {
	Upload(ctx context.Context, items []T) Result[T]
	ProbeConnectivity(ctx context.Context) error
}

// SpillCodec writes a flush's items to the spill file and reads them back.
// EncodeBatch may write the items as several records; DecodeBatch reads the
// next record and returns its items, so one DecodeBatch call can return
// fewer items than one EncodeBatch call wrote. DecodeBatch returns io.EOF
// when the file is exhausted.
type SpillCodec[T any] interface {
	EncodeBatch(w io.Writer, items []T) error
	DecodeBatch(r io.Reader) ([]T, error)
}

// Config is a Queue's immutable configuration.
type Config struct {
	// MaxSize triggers a flush once the FIFO reaches this length. 0
	// disables the size trigger.
	MaxSize int
	// Interval drives the timer trigger. Nil disables it.
	Interval interval.Provider
	// BufferPath enables disk spill on server-class flush faults. Empty
	// disables spill entirely.
	BufferPath string
	Logger     *zerolog.Logger
}

// Queue is a generic, type-parameterized upload batching queue. It owns its
// inner FIFO and (when BufferPath is set) its spill file; both are
// exercised exclusively through Queue's own methods.
type Queue[T any] struct {
	cfg      Config
	uploader Uploader[T]
	codec    SpillCodec[T]
	logger   zerolog.Logger
	onFlush  func(Result[T])

	mu    sync.Mutex
	items []T
	wake  chan struct{}

	flushMu sync.Mutex // serializes every flush, regardless of trigger

	ctx      context.Context // external: cancelling it stops the periodic loop
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// New creates a Queue and starts its flush-triggering loop. onFlush (may be
// nil) is invoked after every flush, including spill-recovery flushes.
func New[T any](ctx context.Context, cfg Config, uploader Uploader[T], codec SpillCodec[T], onFlush func(Result[T])) *Queue[T] {
	l := zerolog.Nop()
	if cfg.Logger != nil {
		l = *cfg.Logger
	}

	runCtx, cancel := context.WithCancel(ctx)
	q := &Queue[T]{
		cfg:      cfg,
		uploader: uploader,
		codec:    codec,
		logger:   l,
		onFlush:  onFlush,
		wake:     make(chan struct{}),
		ctx:      runCtx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}

	go q.run()

	return q
}

// Enqueue appends item to the FIFO. It never blocks; reaching MaxSize wakes
// the flush loop.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	trip := q.cfg.MaxSize > 0 && len(q.items) >= q.cfg.MaxSize
	q.mu.Unlock()
	if trip {
		q.notify()
	}
}

// Trigger runs a flush of everything currently enqueued, right now,
// serialized with any concurrently-running flush, and returns its result.
func (q *Queue[T]) Trigger(ctx context.Context) Result[T] {
	return q.flushOnce(ctx)
}

// Close stops the periodic flush loop and performs exactly one final flush,
// using a background context that Close's own caller cannot cancel -
// shutdown joins the last flush instead of aborting it. If the final flush
// is still running after 60 seconds, a warning is logged, but Close keeps
// waiting rather than abandoning it.
func (q *Queue[T]) Close() {
	q.cancel()
	<-q.loopDone

	done := make(chan struct{})
	go func() {
		q.flushOnce(context.Background())
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(shutdownFlushTimeout):
		q.logger.Warn().Msg("uploadqueue: final flush still running past shutdown safety timeout")
	}
	<-done
}

func (q *Queue[T]) notify() {
	q.mu.Lock()
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
}

func (q *Queue[T]) run() {
	defer close(q.loopDone)

	for {
		q.mu.Lock()
		wake := q.wake
		q.mu.Unlock()

		var timeoutCh <-chan time.Time
		var timer *time.Timer
		if q.cfg.Interval != nil {
			if d := q.cfg.Interval.Value(); d != interval.Infinite {
				timer = time.NewTimer(d)
				timeoutCh = timer.C
			}
		}

		select {
		case <-q.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timeoutCh:
		}

		q.flushOnce(q.ctx)
	}
}

// flushOnce dequeues everything currently present and uploads it, spilling
// on a server-class fault, then invokes onFlush. If the queue was empty and
// spill is enabled, it instead attempts to drain any pending spill file.
func (q *Queue[T]) flushOnce(ctx context.Context) Result[T] {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	if len(items) == 0 {
		if q.cfg.BufferPath != "" {
			q.drainSpill(ctx)
		}
		return Result[T]{}
	}

	result := q.uploader.Upload(ctx, items)
	if result.Err != nil && q.cfg.BufferPath != "" && errkind.IsServerFault(errkind.KindOf(result.Err)) {
		if err := q.appendSpill(items); err != nil {
			q.logger.Warn().Err(err).Msg("uploadqueue: failed to spill batch to disk")
		}
	}

	if q.onFlush != nil {
		q.onFlush(result)
	}
	return result
}

func (q *Queue[T]) appendSpill(items []T) error {
	f, err := os.OpenFile(q.cfg.BufferPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return q.codec.EncodeBatch(f, items)
}

// drainSpill is called with flushMu held. It probes connectivity, then
// streams spilled batches back in and re-submits them; on a full drain it
// truncates the file. A read failure is logged and tolerated without
// losing the remaining on-disk contents; a redelivery failure stops the
// drain (the file is left intact for the next attempt).
func (q *Queue[T]) drainSpill(ctx context.Context) {
	info, err := os.Stat(q.cfg.BufferPath)
	if err != nil || info.Size() == 0 {
		return
	}

	if err := q.uploader.ProbeConnectivity(ctx); err != nil {
		return
	}

	f, err := os.OpenFile(q.cfg.BufferPath, os.O_RDWR, 0o600)
	if err != nil {
		q.logger.Warn().Err(err).Msg("uploadqueue: failed to open spill file for draining")
		return
	}
	defer f.Close()

	for {
		batch, err := q.codec.DecodeBatch(f)
		if err == io.EOF {
			if truncErr := f.Truncate(0); truncErr != nil {
				q.logger.Warn().Err(truncErr).Msg("uploadqueue: failed to truncate drained spill file")
			}
			return
		}
		if err != nil {
			q.logger.Warn().Err(err).Msg("uploadqueue: spill read failed, remaining contents preserved")
			return
		}

		result := q.uploader.Upload(ctx, batch)
		if q.onFlush != nil {
			q.onFlush(result)
		}
		if result.Err != nil {
			q.logger.Warn().Err(result.Err).Msg("uploadqueue: spill redelivery failed, retrying next flush")
			return
		}
	}
}
