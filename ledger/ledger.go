// Package ledger is the durable audit trail: one entry per evaluated
// wager, created at placement and mutated once at settlement, retained
// permanently.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Result is the lifecycle state of a ledger entry.
type Result string

const (
	ResultPending     Result = "pending"     // slot reserved, sink call in flight
	ResultConfirmed   Result = "confirmed"   // sink accepted, awaiting settlement
	ResultWin         Result = "win"
	ResultLoss        Result = "loss"
	ResultVoid        Result = "void"
	ResultRejected    Result = "rejected"    // risk gate said no; kept for audit
	ResultFailed      Result = "failed"      // permanent sink error
	ResultUnconfirmed Result = "unconfirmed" // retries exhausted, needs reconciliation
)

// ErrNotFound is returned by lookups for keys that were never recorded.
var ErrNotFound = errors.New("ledger: entry not found")

// Entry is one audited wager decision. The idempotency key is the
// primary key: at most one entry ever exists per key.
type Entry struct {
	Key     string // caller-supplied idempotency key
	AuditID string // ULID correlation id, time-sortable

	MarketID  string
	Selection string

	Stake       decimal.Decimal
	Odds        float64
	Probability float64
	Edge        float64

	Result         Result
	Reason         string // rejection reason code, empty otherwise
	ConfirmationID string // sink's id for confirmed placements
	PL             decimal.Decimal

	DryRun bool

	PlacedAt  time.Time
	SettledAt *time.Time
}

// Settled reports whether the entry reached a terminal win/loss/void state.
func (e Entry) Settled() bool {
	switch e.Result {
	case ResultWin, ResultLoss, ResultVoid:
		return true
	}
	return false
}

// Store is the persistence boundary the coordinator depends on.
// Reserve must be atomic insert-if-absent at the storage layer; an
// application-level check-then-write would let concurrent retries of
// the same logical bet both pass.
type Store interface {
	// Reserve inserts the entry iff its key is absent. Returns false
	// with no error when the key already exists.
	Reserve(ctx context.Context, e Entry) (bool, error)

	// Get returns the entry for a key or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Update rewrites the mutable fields (result, reason, confirmation
	// id, P/L, settled time) of an existing key.
	Update(ctx context.Context, e Entry) error

	// ListRange returns entries placed within [start, end) in placement order.
	ListRange(ctx context.Context, start, end time.Time) ([]Entry, error)

	// ListByResult returns entries currently in the given state.
	ListByResult(ctx context.Context, r Result) ([]Entry, error)

	Close() error
}
