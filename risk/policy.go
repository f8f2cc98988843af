package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds every gate threshold. All values come from configuration
// so the same gate can run paper and live with different conservatism.
type Policy struct {
	// Candidate validation
	MinOdds float64 // e.g. 1.01
	MaxOdds float64 // e.g. 1000
	MinEdge float64 // reject below this expected profit per unit staked

	// Stake limits
	MaxStakeFraction float64         // fraction of bankroll per bet
	MaxStake         decimal.Decimal // absolute per-bet ceiling, zero = none

	// Exposure limits
	MaxOpenBets int

	// Circuit breakers
	DailyLossLimit       decimal.Decimal // loss magnitude per day
	ConsecutiveLossLimit int
	MaxDrawdownFraction  float64       // trailing drawdown vs peak bankroll
	TrailingWindow       time.Duration // peak lookback, zero = all time

	// CircuitCooldown lets the circuit re-close after a quiet period.
	// Zero (the default) means the circuit only clears on explicit reset.
	CircuitCooldown time.Duration
}

// Candidate is one proposed bet, built per evaluation and discarded
// after the accept/reject decision.
type Candidate struct {
	MarketID    string
	Selection   string
	Probability float64
	Odds        float64
	Stake       decimal.Decimal

	// Decision metadata carried into the audit trail.
	Edge float64
	EV   decimal.Decimal

	At time.Time // evaluation time; zero means now
}
