package periodicscheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognitedata/extractor-utils-core/errkind"
	"github.com/cognitedata/extractor-utils-core/interval"
)

// Operation is the body of a scheduled task. It receives the scheduler's
// driving context, canceled on Scheduler shutdown.
type Operation func(ctx context.Context) error

type task struct {
	name        string
	op          Operation
	provider    interval.Provider // nil for one-shot tasks
	oneShot     bool
	runImmediate bool

	paused    bool
	shouldRun bool

	wake      chan struct{} // closed+recreated to interrupt a sleep without requesting a run
	triggered chan struct{} // buffered 1; requests an immediate run

	done chan struct{}
	err  error
}

type outcome struct {
	name string
	err  error
}

// Scheduler owns a set of named background tasks and a supervisor
// goroutine watching them for the first failure.
type Scheduler struct {
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	tasks       map[string]*task
	anonCounter int
	outcomes    []outcome
	notify      chan struct{}

	supervisorErr  error
	supervisorDone chan struct{}
}

// New creates a Scheduler and starts its supervisor goroutine. Canceling ctx
// stops all tasks' sleeps (without canceling in-flight operation bodies
// beyond what those bodies themselves observe via ctx) and causes
// WaitForAll to return cleanly.
func New(ctx context.Context, logger *zerolog.Logger) *Scheduler {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		logger:         l,
		ctx:            runCtx,
		cancel:         cancel,
		tasks:          make(map[string]*task),
		notify:         make(chan struct{}),
		supervisorDone: make(chan struct{}),
	}

	go s.supervise()

	return s
}

// SchedulePeriodic registers a long-lived task driven by provider. An empty
// name receives a counter-derived one. If runImmediate is true, the
// operation runs once immediately (before the first sleep), provided the
// task isn't created paused.
func (s *Scheduler) SchedulePeriodic(name string, provider interval.Provider, op Operation, runImmediate bool) (string, error) {
	if provider == nil {
		panic("periodicscheduler: nil interval provider")
	}
	return s.schedule(name, op, provider, false, runImmediate)
}

// ScheduleTask fires and tracks a one-shot operation.
func (s *Scheduler) ScheduleTask(name string, op Operation) (string, error) {
	return s.schedule(name, op, nil, true, true)
}

func (s *Scheduler) schedule(name string, op Operation, provider interval.Provider, oneShot, runImmediate bool) (string, error) {
	if op == nil {
		panic("periodicscheduler: nil operation")
	}

	s.mu.Lock()
	if name == "" {
		s.anonCounter++
		name = fmt.Sprintf("task-%d", s.anonCounter)
	}
	if _, exists := s.tasks[name]; exists {
		s.mu.Unlock()
		return "", errkind.New(errkind.InvalidArgument, fmt.Errorf("periodicscheduler: task %q already scheduled", name))
	}

	tk := &task{
		name:         name,
		op:           op,
		provider:     provider,
		oneShot:      oneShot,
		runImmediate: runImmediate,
		shouldRun:    true,
		wake:         make(chan struct{}),
		triggered:    make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	s.tasks[name] = tk
	s.notifyLocked()
	s.mu.Unlock()

	go s.runTask(tk)

	return name, nil
}

// Pause idempotently sets the paused flag for name. Unpausing wakes the
// task's sleep immediately so it resumes normal ticking (it does not, by
// itself, trigger an extra run - see spec.md §8 scenario 5).
func (s *Scheduler) Pause(name string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk, ok := s.tasks[name]
	if !ok {
		return errkind.New(errkind.NotFound, fmt.Errorf("periodicscheduler: unknown task %q", name))
	}
	if tk.paused == paused {
		return nil
	}
	tk.paused = paused
	s.wakeTaskLocked(tk)
	return nil
}

// Trigger idempotently requests an immediate run of name, on top of its
// normal schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	tk, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, fmt.Errorf("periodicscheduler: unknown task %q", name))
	}
	select {
	case tk.triggered <- struct{}{}:
	default:
	}
	return nil
}

// ExitAndWait marks name to stop after its current iteration (without
// canceling an in-flight operation) and blocks until it exits.
func (s *Scheduler) ExitAndWait(ctx context.Context, name string) error {
	s.mu.Lock()
	tk, ok := s.tasks[name]
	if ok {
		tk.shouldRun = false
		s.wakeTaskLocked(tk)
	}
	s.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, fmt.Errorf("periodicscheduler: unknown task %q", name))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tk.done:
		return nil
	}
}

// ExitAllAndWait marks every currently-registered task to stop and blocks
// until all have exited.
func (s *Scheduler) ExitAllAndWait(ctx context.Context) error {
	s.mu.Lock()
	dones := make([]chan struct{}, 0, len(s.tasks))
	for _, tk := range s.tasks {
		tk.shouldRun = false
		s.wakeTaskLocked(tk)
		dones = append(dones, tk.done)
	}
	s.mu.Unlock()

	for _, done := range dones {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}
	return nil
}

// WaitForAll blocks until either the first child task faults (returning its
// error) or the Scheduler's context is canceled (returning nil).
func (s *Scheduler) WaitForAll(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.supervisorDone:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.supervisorErr
	}
}

// Close cancels the scheduler's internal context, stopping all task sleeps
// and the supervisor.
func (s *Scheduler) Close() {
	s.cancel()
}

func (s *Scheduler) wakeTaskLocked(tk *task) {
	close(tk.wake)
	tk.wake = make(chan struct{})
}

func (s *Scheduler) notifyLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

func (s *Scheduler) runTask(tk *task) {
	var finalErr error
	defer func() {
		s.mu.Lock()
		delete(s.tasks, tk.name)
		s.outcomes = append(s.outcomes, outcome{name: tk.name, err: finalErr})
		s.notifyLocked()
		s.mu.Unlock()
		close(tk.done)
	}()

	invoke := func() bool {
		err := tk.op(s.ctx)
		if err != nil {
			finalErr = err
			s.logger.Warn().Str("task", tk.name).Err(err).Msg("periodicscheduler: task failed")
			return false
		}
		return true
	}

	if tk.oneShot {
		invoke()
		return
	}

	first := true
	for {
		s.mu.Lock()
		shouldRun := tk.shouldRun
		paused := tk.paused
		wake := tk.wake
		s.mu.Unlock()

		if !shouldRun {
			return
		}

		if first && tk.runImmediate && !paused {
			if !invoke() {
				return
			}
		}
		first = false

		if paused {
			select {
			case <-s.ctx.Done():
				return
			case <-wake:
				continue
			case <-tk.triggered:
				if !invoke() {
					return
				}
				continue
			}
		}

		d := tk.provider.Value()
		var timeoutCh <-chan time.Time
		var timer *time.Timer
		if d != interval.Infinite {
			timer = time.NewTimer(d)
			timeoutCh = timer.C
		}

		select {
		case <-s.ctx.Done():
			stopTimer(timer)
			return
		case <-wake:
			stopTimer(timer)
			continue
		case <-tk.triggered:
			stopTimer(timer)
			if !invoke() {
				return
			}
			continue
		case <-timeoutCh:
			s.mu.Lock()
			stillPaused := tk.paused
			s.mu.Unlock()
			if !stillPaused {
				if !invoke() {
					return
				}
			}
			continue
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (s *Scheduler) supervise() {
	for {
		s.mu.Lock()
		ch := s.notify
		for len(s.outcomes) > 0 {
			o := s.outcomes[0]
			s.outcomes = s.outcomes[1:]
			if o.err != nil && s.supervisorErr == nil {
				s.supervisorErr = o.err
				s.mu.Unlock()
				close(s.supervisorDone)
				return
			}
		}
		s.mu.Unlock()

		select {
		case <-s.ctx.Done():
			close(s.supervisorDone)
			return
		case <-ch:
		}
	}
}
