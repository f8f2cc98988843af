package staking

import "github.com/shopspring/decimal"

// Candidate is one market/selection competing for bankroll in a
// portfolio allocation round.
type Candidate struct {
	ID          string
	Probability float64
	Odds        float64
}

// Allocation is the sized output for one portfolio candidate.
type Allocation struct {
	ID    string
	Kelly float64
	Stake decimal.Decimal
}

// Allocate sizes a batch of concurrent candidates against one bankroll.
// Each candidate gets its own fractional Kelly stake; if the summed raw
// stakes exceed maxExposure, every stake is scaled down by the same
// ratio. Proportional scaling keeps the result independent of candidate
// order, unlike greedy truncation.
func Allocate(cands []Candidate, bankroll decimal.Decimal, params Params, maxExposure decimal.Decimal) []Allocation {
	out := make([]Allocation, 0, len(cands))
	total := decimal.Zero

	for _, c := range cands {
		r := Calculate(Inputs{Probability: c.Probability, Odds: c.Odds, Bankroll: bankroll}, params)
		out = append(out, Allocation{ID: c.ID, Kelly: r.Kelly, Stake: r.Stake})
		total = total.Add(r.Stake)
	}

	if maxExposure.Sign() <= 0 || total.LessThanOrEqual(maxExposure) {
		return out
	}

	scale := maxExposure.Div(total)
	for i := range out {
		out[i].Stake = out[i].Stake.Mul(scale)
	}
	return out
}
