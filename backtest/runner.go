// Package backtest replays a time-ordered historical stream through
// the same staking and risk code path used live, so a strategy's
// replayed decisions are exactly the decisions it would have made.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stakemill/stakemill/engine"
	"github.com/stakemill/stakemill/ledger"
	"github.com/stakemill/stakemill/risk"
	"github.com/stakemill/stakemill/sink"
	"github.com/stakemill/stakemill/staking"
	"github.com/stakemill/stakemill/value"
)

// Config parameterizes one replay run. Each run owns independent
// state, so different parameter sets may replay in parallel; steps
// within one run never do.
type Config struct {
	InitialBankroll decimal.Decimal
	Staking         staking.Params
	Policy          risk.Policy
}

// Runner drives a feed through a fresh coordinator. Single-threaded
// and deterministic by construction.
type Runner struct {
	cfg Config
	log *zap.Logger
}

// NewRunner builds a runner. A nil logger is replaced with a no-op one.
func NewRunner(cfg Config, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, log: log}
}

// pendingSettlement is a bet waiting for its settlement time during replay.
type pendingSettlement struct {
	at     time.Time
	seq    int // insertion order, the tiebreak for equal times
	key    string
	result ledger.Result
	pl     decimal.Decimal
}

// Run replays the feed. A decision at time N uses only information
// available at N: each row is evaluated at its own timestamp, and
// bankroll moves only when replay time reaches a bet's settlement.
// Malformed rows are skipped with a logged reason; an empty feed is a
// valid run, not an error.
func (r *Runner) Run(ctx context.Context, feed Feed) (Result, error) {
	defer feed.Close()

	state := risk.NewState(r.cfg.InitialBankroll, time.Time{})
	gate := risk.NewGate(r.cfg.Policy, state, r.log)

	paper := sink.NewPaper()
	coord := engine.New(engine.Config{
		Staking: r.cfg.Staking,
		Retry:   sink.RetryPolicy{MaxAttempts: 1},
		DryRun:  true,
	}, gate, ledger.NewMemory(), paper, nil, r.log)

	res := Result{InitialBankroll: r.cfg.InitialBankroll}

	var (
		pending []pendingSettlement
		lastAt  time.Time
		seq     int
	)

	for {
		row, ok, err := feed.Next()
		if !ok {
			break
		}
		if err != nil {
			if errors.Is(err, ErrBadRow) {
				res.Skipped++
				r.log.Warn("skipping malformed row", zap.Error(err))
				continue
			}
			return Result{}, fmt.Errorf("backtest: feed: %w", err)
		}

		if row.At.Before(lastAt) {
			return Result{}, fmt.Errorf("backtest: stream out of order: %s after %s",
				row.At.Format(time.RFC3339), lastAt.Format(time.RFC3339))
		}
		lastAt = row.At

		if res.Start.IsZero() {
			res.Start = row.At
		}
		res.End = row.At

		// Settle everything due before this decision point, in time
		// order, so the gate sees exactly the state it would have live.
		pending = r.applyDue(ctx, coord, pending, row.At, &res)

		seq++
		key := fmt.Sprintf("bt-%06d-%s-%s", seq, row.MarketID, row.Selection)

		entry, err := coord.Place(ctx, engine.Request{
			Key:         key,
			MarketID:    row.MarketID,
			Selection:   row.Selection,
			Probability: row.Probability,
			Odds:        row.Odds,
			At:          row.At,
		})
		if err != nil {
			return Result{}, fmt.Errorf("backtest: place %s: %w", key, err)
		}

		dec := Decision{
			At:       row.At,
			Key:      key,
			MarketID: row.MarketID,
			Accepted: entry.Result == ledger.ResultConfirmed,
			Reason:   risk.Reason(entry.Reason),
			Stake:    entry.Stake,
		}
		res.Decisions = append(res.Decisions, dec)

		if !dec.Accepted {
			continue
		}
		res.Placed++

		pending = append(pending, pendingSettlement{
			at:     row.SettleAt,
			seq:    seq,
			key:    key,
			result: outcomeResult(row.Outcome),
			pl:     outcomePL(row.Outcome, entry.Stake, row.Odds),
		})
	}

	// Every row has been evaluated; flush the remaining settlements.
	r.applyDue(ctx, coord, pending, maxTime, &res)

	snap := coord.Snapshot()
	res.FinalBankroll = snap.Bankroll
	res.ROI = roi(res.InitialBankroll, res.FinalBankroll)
	res.MaxDrawdown = maxDrawdown(res.InitialBankroll, res.Trajectory)
	res.Sharpe = value.Sharpe(settledPLs(res.Trajectory, res.InitialBankroll))

	return res, nil
}

var maxTime = time.Unix(1<<62, 0)

// applyDue settles every pending bet with settle time <= cutoff, in
// (time, insertion) order, and records the trajectory.
func (r *Runner) applyDue(ctx context.Context, coord *engine.Coordinator, pending []pendingSettlement, cutoff time.Time, res *Result) []pendingSettlement {
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].at.Equal(pending[j].at) {
			return pending[i].seq < pending[j].seq
		}
		return pending[i].at.Before(pending[j].at)
	})

	n := 0
	for _, p := range pending {
		if p.at.After(cutoff) {
			break
		}
		n++

		if _, err := coord.Settle(ctx, p.key, p.result, p.pl, p.at); err != nil {
			// Settling a bet the coordinator confirmed cannot fail on
			// the in-memory store; a bug here must be loud.
			r.log.Error("backtest settlement failed", zap.String("key", p.key), zap.Error(err))
			continue
		}

		switch p.result {
		case ledger.ResultWin:
			res.Wins++
		case ledger.ResultLoss:
			res.Losses++
		case ledger.ResultVoid:
			res.Voids++
		}

		res.Trajectory = append(res.Trajectory, TrajectoryPoint{
			At:       p.at,
			Bankroll: coord.Snapshot().Bankroll,
		})
	}

	return pending[n:]
}

func outcomeResult(o Outcome) ledger.Result {
	switch o {
	case OutcomeWin:
		return ledger.ResultWin
	case OutcomeLoss:
		return ledger.ResultLoss
	default:
		return ledger.ResultVoid
	}
}

// outcomePL converts an outcome into realized profit/loss:
// win pays stake*(odds-1), loss forfeits the stake, void returns it.
func outcomePL(o Outcome, stake decimal.Decimal, odds float64) decimal.Decimal {
	switch o {
	case OutcomeWin:
		return stake.Mul(decimal.NewFromFloat(odds - 1))
	case OutcomeLoss:
		return stake.Neg()
	default:
		return decimal.Zero
	}
}

// settledPLs rebuilds the per-bet P/L series from the trajectory.
func settledPLs(traj []TrajectoryPoint, initial decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(traj))
	prev := initial
	for _, p := range traj {
		out = append(out, p.Bankroll.Sub(prev))
		prev = p.Bankroll
	}
	return out
}
