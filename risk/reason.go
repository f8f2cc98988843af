package risk

// Reason is a stable, enumerable rejection code. Calling layers and
// tests assert on these values, so they never change spelling.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonOddsOutOfRange     Reason = "odds_out_of_range"
	ReasonInvalidProbability Reason = "invalid_probability"
	ReasonInvalidStake       Reason = "invalid_stake"
	ReasonStakeOverLimit     Reason = "stake_over_limit"
	ReasonNoValue            Reason = "no_value"
	ReasonMaxOpenBets        Reason = "max_open_bets"
	ReasonDailyLossLimit     Reason = "daily_loss_limit_exceeded"
	ReasonConsecutiveLosses  Reason = "consecutive_loss_limit"
	ReasonMaxDrawdown        Reason = "max_drawdown_exceeded"
	ReasonCircuitOpen        Reason = "circuit_open"
	ReasonRateLimited        Reason = "rate_limited"
)

// Decision is the gate's answer for one candidate. Rejection is an
// expected, high-frequency outcome, so it is a value, never an error.
type Decision struct {
	Accepted bool
	Reason   Reason
}

func accept() Decision         { return Decision{Accepted: true} }
func reject(r Reason) Decision { return Decision{Reason: r} }
