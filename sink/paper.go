package sink

import (
	"context"
	"sync"
	"time"

	"github.com/stakemill/stakemill/pkg/id"
)

// Paper is an in-process sink that accepts every order instantly.
// Paper trading and backtests run against it so the full execution
// path (reservation, sink call, confirmation write) is exercised
// without a counterpart.
type Paper struct {
	mu     sync.Mutex
	orders map[string]Order
	now    func() time.Time
}

// NewPaper returns an empty paper sink.
func NewPaper() *Paper {
	return &Paper{orders: make(map[string]Order), now: time.Now}
}

// SetClock overrides the confirmation timestamp source, used by
// deterministic replay.
func (p *Paper) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

func (p *Paper) Place(ctx context.Context, o Order) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, Transient(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	conf := Confirmation{ID: id.New(), PlacedAt: p.now()}
	p.orders[conf.ID] = o
	return conf, nil
}

// GetStatus reports every known order as open; paper fills never settle
// on their own.
func (p *Paper) GetStatus(ctx context.Context, confirmationID string) (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[confirmationID]; !ok {
		return StatusUnknown, nil
	}
	return StatusOpen, nil
}

// Cancel is unsupported, like most real counterparts.
func (p *Paper) Cancel(ctx context.Context, confirmationID string) error {
	return ErrUnsupported
}
