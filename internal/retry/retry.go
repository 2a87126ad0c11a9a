package retry

import (
	"context"
	"errors"
	"time"

	"github.com/eapache/go-resiliency/retrier"
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Policy is bounded exponential backoff.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy is 3 attempts waiting 2s then 4s, never more than 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
	}
}

// Backoffs returns the waits between consecutive attempts.
func (p Policy) Backoffs() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	delay := float64(p.InitialDelay)
	for i := 0; i < p.MaxAttempts-1; i++ {
		d := time.Duration(delay)
		if p.MaxDelay > 0 && d > p.MaxDelay {
			d = p.MaxDelay
		}
		out = append(out, d)
		delay *= mult
	}
	return out
}

// Do runs op until it succeeds, the attempts are exhausted, op returns an error
// wrapping ErrPermanent, or ctx is done. onRetry, if set, sees each failed
// attempt number (starting at 1) that will be retried.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	backoffs := p.Backoffs()
	r := retrier.New(backoffs, retrier.BlacklistClassifier{ErrPermanent, context.Canceled, context.DeadlineExceeded})
	return r.RunFn(ctx, func(ctx context.Context, retries int) error {
		err := op(ctx)
		if err != nil && onRetry != nil && retries < len(backoffs) && !errors.Is(err, ErrPermanent) &&
			ctx.Err() == nil {
			onRetry(retries+1, err)
		}
		return err
	})
}

// Permanent wraps err so that Do stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) Is(target error) bool {
	return target == ErrPermanent
}
