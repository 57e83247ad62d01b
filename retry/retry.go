package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Classifier decides whether err is worth retrying. It is never consulted
// for a context cancellation/deadline error - those always abort the retry
// loop immediately.
type Classifier func(err error) bool

// Policy bounds a retry loop's attempt count, wall-clock deadline, and
// backoff growth.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Zero means unbounded.
	MaxAttempts int
	// Timeout is a wall-clock ceiling on the whole retry loop, independent
	// of any per-attempt timeout the operation itself enforces. Zero or
	// negative means unbounded.
	Timeout time.Duration
	// InitialDelay is the backoff delay after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps the backoff delay. Zero means unbounded.
	MaxDelay time.Duration
}

const maxBackoffShift = 13

// backoffDelay returns the delay before retry number n (n=1 is the delay
// after the first failed attempt), per min(maxDelay, initialDelay*2^min(n-1,13)).
func backoffDelay(policy Policy, n int) time.Duration {
	shift := n - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	if shift < 0 {
		shift = 0
	}
	delay := policy.InitialDelay << uint(shift)
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

// Do runs op, retrying per policy on errors classifier deems recoverable.
// name is used only for logging. Cancellation of ctx is honored between
// attempts and during the backoff sleep; it is never routed through
// classifier.
func Do(ctx context.Context, name string, op func(ctx context.Context) error, policy Policy, classifier Classifier, logger *zerolog.Logger) error {
	_, err := DoValue(ctx, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, policy, classifier, logger)
	return err
}

// DoValue is the value-returning analogue of Do.
func DoValue[T any](ctx context.Context, name string, op func(ctx context.Context) (T, error), policy Policy, classifier Classifier, logger *zerolog.Logger) (T, error) {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}

	var deadline time.Time
	if policy.Timeout > 0 {
		deadline = time.Now().Add(policy.Timeout)
	}

	attempt := 0
	for {
		attempt++

		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		if !classifier(err) {
			return result, err
		}

		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			l.Warn().Str("op", name).Int("attempts", attempt).Err(err).Msg("retry: attempt budget exhausted")
			return result, err
		}

		delay := backoffDelay(policy, attempt)
		if !deadline.IsZero() && time.Now().Add(delay).After(deadline) {
			l.Warn().Str("op", name).Err(err).Msg("retry: deadline exhausted")
			return result, err
		}

		l.Debug().Str("op", name).Int("attempt", attempt).Dur("delay", delay).Err(err).Msg("retry: backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}
