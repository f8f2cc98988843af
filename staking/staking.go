// Package staking sizes wagers with the fractional Kelly criterion,
// optionally discounted by closed-form CVaR and allocated across a
// portfolio of concurrent candidates.
package staking

import (
	"github.com/shopspring/decimal"
)

// Params controls stake sizing. Zero ceiling means no absolute cap.
type Params struct {
	Fraction         float64         // Kelly multiplier in (0,1], e.g. 0.2
	MaxStakeFraction float64         // cap as fraction of bankroll, e.g. 0.05
	Ceiling          decimal.Decimal // absolute per-bet cap in account currency

	// CVaR discount, off unless RiskAversion > 0.
	CVaRConfidence float64 // e.g. 0.95
	RiskAversion   float64 // 0 disables, 1 full discount
}

// Inputs is one candidate to be sized.
type Inputs struct {
	Probability float64
	Odds        float64
	Bankroll    decimal.Decimal
}

// Result is a sized candidate.
type Result struct {
	Kelly float64         // raw Kelly fraction in [0,1]
	Stake decimal.Decimal // recommended stake after caps
}

// KellyFraction returns (p*(o-1) - (1-p)) / (o-1) clamped to [0,1].
// Degenerate inputs (o<=1, p<=0, p>=1) and non-positive edge give 0.
func KellyFraction(p, o float64) float64 {
	if o <= 1 || p <= 0 || p >= 1 {
		return 0
	}
	b := o - 1
	k := (p*b - (1 - p)) / b
	if k < 0 {
		return 0
	}
	if k > 1 {
		return 1
	}
	return k
}

// Calculate sizes a single candidate: bankroll * fraction * kelly,
// clamped to maxStakeFraction*bankroll and the absolute ceiling.
func Calculate(in Inputs, p Params) Result {
	k := KellyFraction(in.Probability, in.Odds)
	if k == 0 || in.Bankroll.Sign() <= 0 {
		return Result{Kelly: k, Stake: decimal.Zero}
	}

	stake := in.Bankroll.Mul(decimal.NewFromFloat(p.Fraction * k))

	if p.RiskAversion > 0 {
		stake = stake.Mul(decimal.NewFromFloat(cvarDiscount(in.Probability, in.Odds, p)))
	}

	return Result{Kelly: k, Stake: clamp(stake, in.Bankroll, p)}
}

// clamp applies the fractional and absolute stake caps.
func clamp(stake, bankroll decimal.Decimal, p Params) decimal.Decimal {
	if p.MaxStakeFraction > 0 {
		limit := bankroll.Mul(decimal.NewFromFloat(p.MaxStakeFraction))
		if stake.GreaterThan(limit) {
			stake = limit
		}
	}
	if p.Ceiling.Sign() > 0 && stake.GreaterThan(p.Ceiling) {
		stake = p.Ceiling
	}
	if stake.Sign() < 0 {
		return decimal.Zero
	}
	return stake
}
