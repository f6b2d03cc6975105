package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrTimeoutReached is returned when the deadline passes before the condition is met
	ErrTimeoutReached = fmt.Errorf("timeout has been reached")
)

// ConditionFunc is evaluated on every poll round. It returns done once the wait is over.
type ConditionFunc func(ctx context.Context) (done bool, err error)

// NewLimiter returns a limiter allowing perSecond condition calls per second.
// A non-positive rate means unlimited.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Poll retries condition, paced by limiter, until it succeeds, fails or the given
// deadline expires. The deadline is measured from the call and also bounds ctx, so a
// condition blocked on the network is cut short. A non-positive deadline has already
// expired and the condition is never evaluated.
func Poll(ctx context.Context, limiter *rate.Limiter, deadline time.Duration, condition ConditionFunc) error {
	if deadline <= 0 {
		return ErrTimeoutReached
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		if err := Pace(ctx, limiter); err != nil {
			return timeoutOr(ctx, err)
		}
		done, err := condition(ctx)
		if err != nil {
			return timeoutOr(ctx, err)
		}
		if done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return timeoutOr(ctx, err)
		}
	}
}

// Pace blocks until limiter grants one event. When the next event lies past the
// deadline of ctx it returns context.DeadlineExceeded without waiting.
func Pace(ctx context.Context, limiter *rate.Limiter) error {
	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if _, ok := ctx.Deadline(); ok {
			return context.DeadlineExceeded
		}
		return err
	}
	return nil
}

// timeoutOr maps an expired poll deadline to ErrTimeoutReached and passes other errors through.
func timeoutOr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeoutReached
	}
	return err
}
