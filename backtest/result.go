package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stakemill/stakemill/risk"
)

// Decision is one line of the accept/reject audit log.
type Decision struct {
	At       time.Time
	Key      string
	MarketID string
	Accepted bool
	Reason   risk.Reason
	Stake    decimal.Decimal
}

// TrajectoryPoint is the bankroll after one settlement.
type TrajectoryPoint struct {
	At       time.Time
	Bankroll decimal.Decimal
}

// Result summarizes one replay. Identical stream and parameters
// produce an identical Result.
type Result struct {
	InitialBankroll decimal.Decimal
	FinalBankroll   decimal.Decimal

	Placed  int
	Wins    int
	Losses  int
	Voids   int
	Skipped int // malformed rows dropped with a logged reason

	ROI         float64 // (final-initial)/initial
	MaxDrawdown float64 // worst peak-to-trough fraction
	Sharpe      float64 // per-bet, over the settled P/L series

	Trajectory []TrajectoryPoint
	Decisions  []Decision

	Start time.Time
	End   time.Time
}

// roi computes the fractional return, 0 for a zero starting bankroll.
func roi(initial, final decimal.Decimal) float64 {
	if initial.Sign() <= 0 {
		return 0
	}
	r, _ := final.Sub(initial).Div(initial).Float64()
	return r
}

// maxDrawdown walks the trajectory tracking the running peak.
func maxDrawdown(initial decimal.Decimal, traj []TrajectoryPoint) float64 {
	peak := initial
	worst := 0.0
	for _, p := range traj {
		if p.Bankroll.GreaterThan(peak) {
			peak = p.Bankroll
			continue
		}
		if peak.Sign() <= 0 {
			continue
		}
		dd, _ := peak.Sub(p.Bankroll).Div(peak).Float64()
		if dd > worst {
			worst = dd
		}
	}
	return worst
}
