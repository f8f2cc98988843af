package sink

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned without calling the sink while the breaker
// is open.
var ErrBreakerOpen = errors.New("sink: breaker open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a closed/open/half-open circuit around a Sink. After
// Threshold consecutive failures it opens and fails fast; once OpenFor
// has elapsed a single probe call is allowed through, and its outcome
// decides between re-closing and re-opening.
//
// This protects the process from a dying counterpart. It is unrelated
// to the risk circuit in package risk, which latches on bankroll
// conditions and only clears on explicit reset.
type Breaker struct {
	inner     Sink
	threshold int
	openFor   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	state     breakerState
	failures  int
	openedAt  time.Time
	probing   bool
}

// NewBreaker wraps a sink. threshold <= 0 defaults to 5 failures,
// openFor <= 0 to 30 seconds.
func NewBreaker(inner Sink, threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{inner: inner, threshold: threshold, openFor: openFor, now: time.Now}
}

// SetClock overrides the time source for tests.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Place forwards to the wrapped sink when the breaker allows it.
// Failures returned from an open breaker are transient by definition:
// the counterpart may recover.
func (b *Breaker) Place(ctx context.Context, o Order) (Confirmation, error) {
	if err := b.before(); err != nil {
		return Confirmation{}, err
	}

	conf, err := b.inner.Place(ctx, o)
	b.after(err)
	return conf, err
}

// before decides whether this call may proceed and moves open → half-open.
func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.openFor {
			return Transient(ErrBreakerOpen)
		}
		b.state = breakerHalfOpen
		b.probing = true
		return nil
	default: // half-open
		if b.probing {
			return Transient(ErrBreakerOpen)
		}
		b.probing = true
		return nil
	}
}

// after records the call outcome. Permanent errors are the
// counterpart answering, so they count as contact, not as breaker
// failures.
func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if err == nil || IsPermanent(err) {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}
