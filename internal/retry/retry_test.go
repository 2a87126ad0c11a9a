package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyBackoffs(t *testing.T) {
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, DefaultPolicy().Backoffs())
}

func TestBackoffsAreCapped(t *testing.T) {
	p := Policy{MaxAttempts: 6, InitialDelay: 2 * time.Second, Multiplier: 2, MaxDelay: 10 * time.Second}
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second,
	}, p.Backoffs())

	assert.Empty(t, Policy{MaxAttempts: 1, InitialDelay: time.Second}.Backoffs())
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	var retried []int
	boom := errors.New("exit status 1")

	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, func(attempt int, err error) {
		retried = append(retried, attempt)
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errors.New("bad input"))
	}, nil)

	require.ErrorIs(t, err, ErrPermanent)
	assert.EqualError(t, err, "bad input")
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialDelay: time.Hour, Multiplier: 2}

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("encoder died")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
