// Package engine orchestrates one wager from sizing through risk
// gating to the settlement sink, with an idempotent, durably audited
// placement path. Live execution and backtesting both run through this
// coordinator so replayed decisions are truthful to live behavior.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stakemill/stakemill/ledger"
	"github.com/stakemill/stakemill/metrics"
	"github.com/stakemill/stakemill/pkg/id"
	"github.com/stakemill/stakemill/risk"
	"github.com/stakemill/stakemill/sink"
	"github.com/stakemill/stakemill/staking"
	"github.com/stakemill/stakemill/value"
)

// ErrRateLimited is returned before any evaluation when the placement
// budget for the current minute is spent. It is transient: the caller
// may retry the same idempotency key later.
var ErrRateLimited = errors.New("engine: placement rate limit exceeded")

// Config carries the coordinator's own knobs; risk thresholds live in
// the gate's policy.
type Config struct {
	Staking             staking.Params
	Retry               sink.RetryPolicy
	SinkTimeout         time.Duration // per sink attempt, zero = 10s
	PlacementsPerMinute int           // zero = unlimited
	DryRun              bool          // stamp entries as paper, never real money
}

// Request asks for one wager to be placed at most once.
type Request struct {
	Key         string // caller-supplied idempotency key, required
	MarketID    string
	Selection   string
	Probability float64
	Odds        float64

	// At pins the decision clock; zero means wall time. Backtests set
	// it to the replay position.
	At time.Time
}

// Coordinator runs StakingEngine → RiskGate → Sink with one durable
// ledger write per step. Evaluation and slot reservation are
// serialized: two concurrent candidates must not both pass the same
// daily-loss budget. No lock is held across the sink call.
type Coordinator struct {
	mu sync.Mutex // serializes evaluate + reserve

	cfg     Config
	gate    *risk.Gate
	store   ledger.Store
	snk     sink.Sink
	limiter *rate.Limiter
	met     *metrics.Set
	log     *zap.Logger
}

// New wires a coordinator. Metrics and logger may be nil.
func New(cfg Config, gate *risk.Gate, store ledger.Store, snk sink.Sink, met *metrics.Set, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.PlacementsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.PlacementsPerMinute)/60), cfg.PlacementsPerMinute)
	}

	return &Coordinator{
		cfg:     cfg,
		gate:    gate,
		store:   store,
		snk:     snk,
		limiter: limiter,
		met:     met,
		log:     log,
	}
}

// Place decides, validates and records one wager for the given
// idempotency key. A key seen before returns the existing ledger entry
// unchanged, with no re-evaluation and no second side effect. Rejections are
// a normal outcome: the returned entry carries the reason and err is
// nil. Errors mean the operation itself failed (storage, rate limit,
// sink trouble) and the caller may retry with the same key.
func (c *Coordinator) Place(ctx context.Context, req Request) (ledger.Entry, error) {
	if req.Key == "" {
		return ledger.Entry{}, fmt.Errorf("engine: idempotency key is required")
	}

	// Idempotent replay path.
	existing, err := c.store.Get(ctx, req.Key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return ledger.Entry{}, fmt.Errorf("engine: lookup %q: %w", req.Key, err)
	}

	// Placement throttle, independent of whatever the sink enforces.
	// Nothing is persisted: the attempt never happened.
	if c.limiter != nil && !c.limiter.Allow() {
		return ledger.Entry{}, sink.Transient(ErrRateLimited)
	}

	entry, accepted, err := c.evaluateAndReserve(ctx, req)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !accepted {
		return entry, nil
	}

	return c.submit(ctx, entry)
}

// evaluateAndReserve sizes the candidate, runs the gate and reserves
// the ledger slot, all under the coordinator lock so concurrent
// evaluations see a consistent risk state. The reservation itself is
// additionally atomic at the storage layer; if another caller raced us
// to the key, their entry wins and is returned.
func (c *Coordinator) evaluateAndReserve(ctx context.Context, req Request) (ledger.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := req.At
	if now.IsZero() {
		now = time.Now()
	}

	snap := c.gate.State().Snapshot()
	sized := staking.Calculate(staking.Inputs{
		Probability: req.Probability,
		Odds:        req.Odds,
		Bankroll:    snap.Bankroll,
	}, c.cfg.Staking)

	cand := risk.Candidate{
		MarketID:    req.MarketID,
		Selection:   req.Selection,
		Probability: req.Probability,
		Odds:        req.Odds,
		Stake:       sized.Stake,
		Edge:        value.Edge(req.Probability, req.Odds),
		EV:          value.ExpectedValue(req.Probability, req.Odds, sized.Stake),
		At:          now,
	}

	decision := c.gate.Evaluate(cand)

	entry := ledger.Entry{
		Key:         req.Key,
		AuditID:     id.New(),
		MarketID:    req.MarketID,
		Selection:   req.Selection,
		Stake:       cand.Stake,
		Odds:        req.Odds,
		Probability: req.Probability,
		Edge:        cand.Edge,
		DryRun:      c.cfg.DryRun,
		PlacedAt:    now,
	}
	if decision.Accepted {
		entry.Result = ledger.ResultPending
	} else {
		entry.Result = ledger.ResultRejected
		entry.Reason = string(decision.Reason)
	}

	inserted, err := c.store.Reserve(ctx, entry)
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("engine: reserve %q: %w", req.Key, err)
	}
	if !inserted {
		// Lost a race on the same key; the winner's record stands.
		won, err := c.store.Get(ctx, req.Key)
		if err != nil {
			return ledger.Entry{}, false, fmt.Errorf("engine: lookup after conflict %q: %w", req.Key, err)
		}
		return won, false, nil
	}

	if !decision.Accepted {
		c.countRejection(decision.Reason)
		c.log.Debug("candidate rejected",
			zap.String("key", req.Key),
			zap.String("market", req.MarketID),
			zap.String("reason", string(decision.Reason)))
		return entry, false, nil
	}

	return entry, true, nil
}

// submit calls the sink for a reserved entry and persists the outcome.
// The coordinator lock is NOT held here: sink latency must never block
// unrelated evaluations. The pending slot already owns the key.
func (c *Coordinator) submit(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	var conf sink.Confirmation

	err := c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.SinkTimeout)
		defer cancel()

		var placeErr error
		conf, placeErr = c.snk.Place(attemptCtx, sink.Order{
			MarketID:  entry.MarketID,
			Selection: entry.Selection,
			Stake:     entry.Stake,
			Odds:      entry.Odds,
		})
		if placeErr != nil && c.met != nil {
			c.met.SinkRetries.Inc()
		}
		return placeErr
	})

	switch {
	case err == nil:
		entry.Result = ledger.ResultConfirmed
		entry.ConfirmationID = conf.ID
	case sink.IsPermanent(err):
		entry.Result = ledger.ResultFailed
		entry.Reason = "permanent_sink_error"
		c.log.Warn("placement failed permanently",
			zap.String("key", entry.Key), zap.Error(err))
	default:
		// Retries exhausted on transient errors. The wager may exist
		// remotely; mark it unconfirmed for reconciliation, never lost.
		entry.Result = ledger.ResultUnconfirmed
		entry.Reason = "retries_exhausted"
		c.log.Warn("placement unconfirmed, needs reconciliation",
			zap.String("key", entry.Key), zap.Error(err))
	}

	// One durable write per step: success is only reported after this
	// lands. An unrecorded confirmed bet would corrupt every risk
	// number downstream.
	if uerr := c.store.Update(ctx, entry); uerr != nil {
		return ledger.Entry{}, fmt.Errorf("engine: persist outcome %q: %w", entry.Key, uerr)
	}

	// Confirmed and unconfirmed placements both consume exposure
	// budget until settled or reconciled, the conservative reading of
	// an ambiguous timeout.
	if entry.Result == ledger.ResultConfirmed || entry.Result == ledger.ResultUnconfirmed {
		c.gate.State().ReserveOpenBet()
	}

	if c.met != nil {
		c.met.Placements.WithLabelValues(string(entry.Result)).Inc()
	}
	c.log.Info("placement recorded",
		zap.String("key", entry.Key),
		zap.String("market", entry.MarketID),
		zap.String("result", string(entry.Result)),
		zap.String("stake", entry.Stake.String()))

	return entry, nil
}

// Settle applies an externally driven settlement to a confirmed (or
// reconciled unconfirmed) placement: the ledger entry is finalized once
// and the risk state absorbs the P/L, which may trip the circuit.
func (c *Coordinator) Settle(ctx context.Context, key string, result ledger.Result, pl decimal.Decimal, at time.Time) (ledger.Entry, error) {
	switch result {
	case ledger.ResultWin, ledger.ResultLoss, ledger.ResultVoid:
	default:
		return ledger.Entry{}, fmt.Errorf("engine: %q is not a settlement result", result)
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("engine: settle %q: %w", key, err)
	}
	if entry.Settled() {
		return entry, nil // settlement is applied at most once
	}
	if entry.Result != ledger.ResultConfirmed && entry.Result != ledger.ResultUnconfirmed {
		return ledger.Entry{}, fmt.Errorf("engine: settle %q: entry is %s, not an open placement", key, entry.Result)
	}

	if at.IsZero() {
		at = time.Now()
	}

	entry.Result = result
	entry.PL = pl
	entry.SettledAt = &at
	if err := c.store.Update(ctx, entry); err != nil {
		return ledger.Entry{}, fmt.Errorf("engine: persist settlement %q: %w", key, err)
	}

	snap := c.gate.Settle(at, pl)
	if snap.CircuitOpen && c.met != nil {
		c.met.CircuitTrips.Inc()
	}

	c.log.Info("settlement applied",
		zap.String("key", key),
		zap.String("result", string(result)),
		zap.String("pl", pl.String()),
		zap.String("bankroll", snap.Bankroll.String()))

	return entry, nil
}

// Snapshot returns the current risk state for status queries.
func (c *Coordinator) Snapshot() risk.Snapshot {
	return c.gate.State().Snapshot()
}

// ResetCircuit closes the risk circuit. The confirm flag is a
// deliberate speed bump: callers must state they mean it.
func (c *Coordinator) ResetCircuit(confirm bool) error {
	if !confirm {
		return fmt.Errorf("engine: circuit reset requires explicit confirmation")
	}
	snap := c.gate.State().Snapshot()
	c.gate.State().ResetCircuit()
	c.log.Warn("risk circuit reset",
		zap.Bool("was_open", snap.CircuitOpen),
		zap.String("trip_reason", string(snap.TripReason)))
	return nil
}

func (c *Coordinator) countRejection(reason risk.Reason) {
	if c.met != nil {
		c.met.Rejections.WithLabelValues(string(reason)).Inc()
	}
}
