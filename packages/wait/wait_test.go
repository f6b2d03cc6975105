package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollSucceeds(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), nil, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestPollTimeout(t *testing.T) {
	start := time.Now()
	err := Poll(context.Background(), NewLimiter(100), 200*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, ErrTimeoutReached)
	// gives up once the next slot falls after the deadline
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestPollExpiredDeadline(t *testing.T) {
	for _, deadline := range []time.Duration{0, -time.Second} {
		calls := 0
		err := Poll(context.Background(), nil, deadline, func(context.Context) (bool, error) {
			calls++
			return true, nil
		})
		require.ErrorIs(t, err, ErrTimeoutReached, deadline.String())
		require.Zero(t, calls)
	}
}

func TestPaceSlotAfterDeadline(t *testing.T) {
	limiter := NewLimiter(1)
	require.NoError(t, Pace(context.Background(), limiter))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.ErrorIs(t, Pace(ctx, limiter), context.DeadlineExceeded)
	require.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestPaceUnlimited(t *testing.T) {
	limiter := NewLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, Pace(context.Background(), limiter))
	}
}

func TestPollConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := Poll(context.Background(), nil, time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestPollBlockedConditionHitsDeadline(t *testing.T) {
	err := Poll(context.Background(), nil, 100*time.Millisecond, func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	require.ErrorIs(t, err, ErrTimeoutReached)
}

func TestPollParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Poll(ctx, NewLimiter(1), time.Second, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLimiterPacesCalls(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Poll(context.Background(), NewLimiter(20), time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 5, nil
	})
	require.NoError(t, err)
	// first call is free, the next four wait 50ms each
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
