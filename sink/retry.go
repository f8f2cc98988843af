package sink

import (
	"context"
	"time"
)

// RetryPolicy retries a sink call a bounded number of times with
// exponential backoff. Only transient failures are retried; permanent
// errors and context cancellation return immediately. It is one of two
// independent protection layers around a sink (the other is Breaker)
// so each failure behavior stays separately testable.
type RetryPolicy struct {
	MaxAttempts int           // total tries including the first
	BaseWait    time.Duration // wait before the second try
	MaxWait     time.Duration // backoff cap, zero = uncapped
}

// DefaultRetryPolicy mirrors the conservative client defaults used for
// counterpart APIs: three tries, half-second base backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseWait: 500 * time.Millisecond, MaxWait: 5 * time.Second}
}

// Do invokes fn until it succeeds, fails permanently, or attempts run
// out. The last error is returned unwrapped so the caller can still
// classify it.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	wait := p.BaseWait

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Transient(ctx.Err())
			case <-time.After(wait):
			}
			wait *= 2
			if p.MaxWait > 0 && wait > p.MaxWait {
				wait = p.MaxWait
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return err
}
