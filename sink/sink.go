// Package sink defines the settlement counterpart boundary: the thing
// that actually takes the wager. Implementations range from an
// in-process paper ledger to an external bookmaker API. Optional
// capabilities (status, cancel) are separate interfaces because several
// real counterparts simply don't have them.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the tuple a sink accepts.
type Order struct {
	MarketID  string
	Selection string
	Stake     decimal.Decimal
	Odds      float64
}

// Confirmation is the sink's acknowledgement of a placed order.
type Confirmation struct {
	ID       string
	PlacedAt time.Time
}

// Status is a counterpart-reported order state.
type Status string

const (
	StatusOpen      Status = "open"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

// Sink places orders. Place either returns a confirmation or an error
// classified as transient or permanent via this package's helpers.
type Sink interface {
	Place(ctx context.Context, o Order) (Confirmation, error)
}

// StatusSink is the optional status capability.
type StatusSink interface {
	GetStatus(ctx context.Context, confirmationID string) (Status, error)
}

// CancelSink is the optional cancel capability.
type CancelSink interface {
	Cancel(ctx context.Context, confirmationID string) error
}

// ErrUnsupported is returned by optional operations the counterpart
// lacks. It is an expected answer, not a failure.
var ErrUnsupported = errors.New("sink: operation unsupported")
