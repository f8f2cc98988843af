package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterTransients(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastRetry(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastRetry(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errors.New("market closed"))
	})

	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastRetry(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Transient(errors.New("still down"))
	})

	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestRetryHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	p := RetryPolicy{MaxAttempts: 10, BaseWait: 50 * time.Millisecond}
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Transient(errors.New("down"))
	})

	assert.True(t, IsTransient(err))
	assert.Equal(t, 1, calls, "cancellation must stop the loop in the backoff wait")
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(Transient(errors.New("x"))))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(Permanent(errors.New("x"))))
	assert.False(t, IsTransient(errors.New("unclassified")))

	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsPermanent(Transient(errors.New("x"))))

	// Wrapping preserves classification.
	wrapped := errors.Join(errors.New("outer"), Transient(errors.New("inner")))
	assert.True(t, IsTransient(wrapped))

	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
}
