package staking

// A binary bet has exactly two payoffs per unit staked: -1 on a loss and
// +(o-1) on a win, so conditional value-at-risk has a closed form and no
// Monte Carlo pass is needed.

// CVaRPerUnit returns the expected loss per unit staked in the worst
// (1-confidence) tail. Positive values mean the tail loses money.
func CVaRPerUnit(p, o, confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 || o <= 1 || p <= 0 || p >= 1 {
		return 0
	}
	alpha := 1 - confidence
	lossProb := 1 - p

	if lossProb >= alpha {
		// The tail is entirely made of losing outcomes: lose the stake.
		return 1
	}

	// Tail holds the whole losing outcome plus a slice of winning ones.
	win := o - 1
	return (lossProb - (alpha-lossProb)*win) / alpha
}

// cvarDiscount maps tail loss into a stake multiplier in [0,1].
// RiskAversion 0 leaves the stake untouched, 1 scales it down by the
// full per-unit tail loss.
func cvarDiscount(p, o float64, params Params) float64 {
	perUnit := CVaRPerUnit(p, o, params.CVaRConfidence)
	if perUnit <= 0 {
		return 1
	}
	d := 1 - params.RiskAversion*perUnit
	if d < 0 {
		return 0
	}
	return d
}
