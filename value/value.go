// Package value holds the pure wager math: implied probability, edge,
// expected value and return-series statistics. No I/O, no state.
package value

import (
	"math"

	"github.com/shopspring/decimal"
)

// ImpliedProbability converts decimal odds to the bookmaker's breakeven
// probability (1/odds). Returns 0 for odds <= 0.
func ImpliedProbability(odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	return 1 / odds
}

// Edge is the expected profit per unit staked: p*odds - 1.
// Positive edge means the forecast beats the market price.
func Edge(p, odds float64) float64 {
	return p*odds - 1
}

// ExpectedValue returns the expected monetary profit of a bet:
// stake * (p*(odds-1) - (1-p)). Monetary amounts stay in decimal so
// repeated accounting never drifts.
func ExpectedValue(p, odds float64, stake decimal.Decimal) decimal.Decimal {
	ev := p*(odds-1) - (1 - p)
	return stake.Mul(decimal.NewFromFloat(ev))
}

// Mean returns the arithmetic mean of a settled P/L series.
func Mean(pls []decimal.Decimal) decimal.Decimal {
	if len(pls) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, pl := range pls {
		sum = sum.Add(pl)
	}
	return sum.Div(decimal.NewFromInt(int64(len(pls))))
}

// Variance returns the population variance of a settled P/L series.
// Ratios come back as float64; only money itself stays decimal.
func Variance(pls []decimal.Decimal) float64 {
	if len(pls) < 2 {
		return 0
	}
	mean := Mean(pls)
	var ss float64
	for _, pl := range pls {
		d, _ := pl.Sub(mean).Float64()
		ss += d * d
	}
	return ss / float64(len(pls))
}

// StdDev returns the population standard deviation of a settled P/L series.
func StdDev(pls []decimal.Decimal) float64 {
	return math.Sqrt(Variance(pls))
}

// Sharpe returns the per-bet Sharpe ratio of a settled P/L series:
// mean P/L over its standard deviation. Zero when the series is too
// short or flat to have a defined ratio.
func Sharpe(pls []decimal.Decimal) float64 {
	sd := StdDev(pls)
	if sd == 0 {
		return 0
	}
	mean, _ := Mean(pls).Float64()
	return mean / sd
}
