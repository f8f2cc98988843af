// Package risk gates proposed bets against a mutable risk state and
// owns the circuit-breaker latch. The same gate code path serves live
// execution, paper trading and backtests.
package risk

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gate validates candidates against a Policy and one shared State.
// Checks run in a fixed order and the first failure wins, so every
// rejection has exactly one stable reason.
type Gate struct {
	policy Policy
	state  *State
	log    *zap.Logger
}

// NewGate builds a gate over an injected state. A nil logger is
// replaced with a no-op one for tests.
func NewGate(policy Policy, state *State, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{policy: policy, state: state, log: log}
}

// Policy returns the gate's thresholds.
func (g *Gate) Policy() Policy { return g.policy }

// State exposes the underlying risk state for snapshots and resets.
func (g *Gate) State() *State { return g.state }

// Evaluate runs the validation pipeline over one candidate:
// circuit fast path, input validation, stake limits, minimum edge,
// exposure cap, then the loss-based breakers. Limit breaches that
// indicate a runaway day latch the circuit as a side effect.
func (g *Gate) Evaluate(c Candidate) Decision {
	now := c.At
	if now.IsZero() {
		now = time.Now()
	}

	g.state.mu.Lock()
	defer g.state.mu.Unlock()

	s := g.state
	s.rollDayLocked(now)

	// Fast path: a latched circuit rejects without re-running the
	// pipeline. It only re-closes here if a cooldown is configured.
	if s.circuitOpen {
		if g.policy.CircuitCooldown > 0 && now.Sub(s.trippedAt) >= g.policy.CircuitCooldown {
			g.log.Info("circuit cooldown elapsed, re-closing",
				zap.Time("tripped_at", s.trippedAt),
				zap.String("trip_reason", string(s.tripReason)))
			s.circuitOpen = false
			s.trippedAt = time.Time{}
			s.tripReason = ReasonNone
			s.consecutiveLosses = 0
		} else {
			return reject(ReasonCircuitOpen)
		}
	}

	// Input validation.
	if c.Odds < g.policy.MinOdds || (g.policy.MaxOdds > 0 && c.Odds > g.policy.MaxOdds) {
		return reject(ReasonOddsOutOfRange)
	}
	if c.Probability <= 0 || c.Probability >= 1 {
		return reject(ReasonInvalidProbability)
	}
	if c.Stake.Sign() <= 0 {
		return reject(ReasonInvalidStake)
	}

	// Stake limits.
	if g.policy.MaxStakeFraction > 0 {
		limit := s.bankroll.Mul(decimal.NewFromFloat(g.policy.MaxStakeFraction))
		if c.Stake.GreaterThan(limit) {
			return reject(ReasonStakeOverLimit)
		}
	}
	if g.policy.MaxStake.Sign() > 0 && c.Stake.GreaterThan(g.policy.MaxStake) {
		return reject(ReasonStakeOverLimit)
	}

	// Minimum edge.
	if c.Probability*c.Odds-1 < g.policy.MinEdge {
		return reject(ReasonNoValue)
	}

	// Exposure cap.
	if g.policy.MaxOpenBets > 0 && s.openBets >= g.policy.MaxOpenBets {
		return reject(ReasonMaxOpenBets)
	}

	// Daily loss limit. dayRealized holds signed P/L; only the loss
	// magnitude counts against the budget.
	if g.policy.DailyLossLimit.Sign() > 0 && s.dayRealized.Sign() < 0 &&
		s.dayRealized.Neg().GreaterThanOrEqual(g.policy.DailyLossLimit) {
		g.tripLocked(now, ReasonDailyLossLimit)
		return reject(ReasonDailyLossLimit)
	}

	// Consecutive-loss breaker.
	if g.policy.ConsecutiveLossLimit > 0 && s.consecutiveLosses >= g.policy.ConsecutiveLossLimit {
		g.tripLocked(now, ReasonConsecutiveLosses)
		return reject(ReasonConsecutiveLosses)
	}

	// Trailing drawdown breaker.
	if g.policy.MaxDrawdownFraction > 0 {
		s.pruneLocked(now, g.policy.TrailingWindow)
		if drawdown(s.peakLocked(), s.bankroll) > g.policy.MaxDrawdownFraction {
			g.tripLocked(now, ReasonMaxDrawdown)
			return reject(ReasonMaxDrawdown)
		}
	}

	return accept()
}

// Settle applies one settled bet to the state: bankroll, daily P/L
// bucket, loss streak and trailing peak, then re-evaluates the
// circuit-trip conditions. The open-bet slot is released here.
// Returns the post-settlement snapshot.
func (g *Gate) Settle(at time.Time, pl decimal.Decimal) Snapshot {
	if at.IsZero() {
		at = time.Now()
	}

	g.state.mu.Lock()
	defer g.state.mu.Unlock()

	s := g.state
	s.rollDayLocked(at)

	s.bankroll = s.bankroll.Add(pl)
	s.dayRealized = s.dayRealized.Add(pl)

	switch {
	case pl.Sign() < 0:
		s.consecutiveLosses++
	case pl.Sign() > 0:
		s.consecutiveLosses = 0
	}
	// A void (zero P/L) leaves the streak alone.

	if s.openBets > 0 {
		s.openBets--
	}

	s.peaks = append(s.peaks, peakPoint{at: at, bankroll: s.bankroll})
	s.pruneLocked(at, g.policy.TrailingWindow)

	g.checkTripsLocked(at)

	return s.snapshotLocked()
}

// checkTripsLocked re-evaluates every latch condition after a mutation.
func (g *Gate) checkTripsLocked(at time.Time) {
	s := g.state
	if s.circuitOpen {
		return
	}
	if g.policy.DailyLossLimit.Sign() > 0 && s.dayRealized.Sign() < 0 &&
		s.dayRealized.Neg().GreaterThanOrEqual(g.policy.DailyLossLimit) {
		g.tripLocked(at, ReasonDailyLossLimit)
		return
	}
	if g.policy.ConsecutiveLossLimit > 0 && s.consecutiveLosses >= g.policy.ConsecutiveLossLimit {
		g.tripLocked(at, ReasonConsecutiveLosses)
		return
	}
	if g.policy.MaxDrawdownFraction > 0 && drawdown(s.peakLocked(), s.bankroll) > g.policy.MaxDrawdownFraction {
		g.tripLocked(at, ReasonMaxDrawdown)
	}
}

// tripLocked latches the circuit and logs the trip once.
func (g *Gate) tripLocked(at time.Time, reason Reason) {
	if g.state.circuitOpen {
		return
	}
	g.state.tripLocked(at, reason)
	g.log.Warn("risk circuit tripped",
		zap.String("reason", string(reason)),
		zap.Time("at", at),
		zap.String("bankroll", g.state.bankroll.String()),
		zap.Int("consecutive_losses", g.state.consecutiveLosses))
}

// drawdown returns the fractional decline of bankroll from its peak.
func drawdown(peak, bankroll decimal.Decimal) float64 {
	if peak.Sign() <= 0 || bankroll.GreaterThanOrEqual(peak) {
		return 0
	}
	dd, _ := peak.Sub(bankroll).Div(peak).Float64()
	return dd
}
