package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testPolicy() Policy {
	return Policy{
		MinOdds:              1.01,
		MaxOdds:              1000,
		MinEdge:              0.02,
		MaxStakeFraction:     0.05,
		MaxStake:             decimal.NewFromInt(500),
		MaxOpenBets:          5,
		DailyLossLimit:       decimal.NewFromInt(1000),
		ConsecutiveLossLimit: 3,
		MaxDrawdownFraction:  0.2,
	}
}

func goodCandidate() Candidate {
	return Candidate{
		MarketID:    "match-1",
		Selection:   "home",
		Probability: 0.55,
		Odds:        2.10,
		Stake:       decimal.NewFromInt(100),
		At:          time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	state := NewState(decimal.NewFromInt(10000), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	return NewGate(testPolicy(), state, nil)
}

func TestEvaluateAccepts(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	d := g.Evaluate(goodCandidate())
	assert.True(t, d.Accepted)
	assert.Equal(t, ReasonNone, d.Reason)
}

func TestEvaluateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Candidate)
		want   Reason
	}{
		{"odds below min", func(c *Candidate) { c.Odds = 1.00 }, ReasonOddsOutOfRange},
		{"odds above max", func(c *Candidate) { c.Odds = 1001 }, ReasonOddsOutOfRange},
		{"probability zero", func(c *Candidate) { c.Probability = 0 }, ReasonInvalidProbability},
		{"probability one", func(c *Candidate) { c.Probability = 1 }, ReasonInvalidProbability},
		{"zero stake", func(c *Candidate) { c.Stake = decimal.Zero }, ReasonInvalidStake},
		{"negative stake", func(c *Candidate) { c.Stake = decimal.NewFromInt(-5) }, ReasonInvalidStake},
		{"stake over fraction", func(c *Candidate) { c.Stake = decimal.NewFromInt(501) }, ReasonStakeOverLimit},
		{"no edge", func(c *Candidate) { c.Probability = 0.476; c.Odds = 2.10 }, ReasonNoValue},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := newTestGate(t)
			c := goodCandidate()
			tt.mutate(&c)
			d := g.Evaluate(c)
			assert.False(t, d.Accepted)
			assert.Equal(t, tt.want, d.Reason)
		})
	}
}

func TestEvaluateOddsRangeBeatsEdge(t *testing.T) {
	t.Parallel()

	// Enormous edge cannot rescue out-of-range odds.
	g := newTestGate(t)
	c := goodCandidate()
	c.Odds = 1.00
	c.Probability = 0.99

	d := g.Evaluate(c)
	assert.Equal(t, ReasonOddsOutOfRange, d.Reason)
}

func TestEvaluateAbsoluteCeiling(t *testing.T) {
	t.Parallel()

	state := NewState(decimal.NewFromInt(100000), time.Time{})
	g := NewGate(testPolicy(), state, nil)

	c := goodCandidate()
	c.Stake = decimal.NewFromInt(600) // under 5% of 100k, over the 500 ceiling
	d := g.Evaluate(c)
	assert.Equal(t, ReasonStakeOverLimit, d.Reason)
}

func TestMaxOpenBets(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	for i := 0; i < 5; i++ {
		g.State().ReserveOpenBet()
	}

	d := g.Evaluate(goodCandidate())
	assert.Equal(t, ReasonMaxOpenBets, d.Reason)

	g.State().ReleaseOpenBet()
	d = g.Evaluate(goodCandidate())
	assert.True(t, d.Accepted)
}

func TestDailyLossLimitRejectsAndTrips(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	g.State().ReserveOpenBet()
	snap := g.Settle(at, decimal.NewFromInt(-1000))
	assert.True(t, snap.CircuitOpen)
	assert.Equal(t, ReasonDailyLossLimit, snap.TripReason)

	// Positive-edge candidate still rejects once the budget is gone.
	c := goodCandidate()
	c.Probability = 0.9
	d := g.Evaluate(c)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonCircuitOpen, d.Reason)
}

func TestDailyLossBucketRollsOver(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.ConsecutiveLossLimit = 0 // isolate the daily limit
	p.MaxDrawdownFraction = 0
	state := NewState(decimal.NewFromInt(100000), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	g := NewGate(p, state, nil)

	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g.State().ReserveOpenBet()
	snap := g.Settle(day1, decimal.NewFromInt(-999))
	assert.False(t, snap.CircuitOpen)

	// Next day the bucket is fresh.
	c := goodCandidate()
	c.At = day1.Add(24 * time.Hour)
	d := g.Evaluate(c)
	assert.True(t, d.Accepted)
	assert.True(t, g.State().Snapshot().DayRealized.IsZero())
}

func TestConsecutiveLossesTripCircuit(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.DailyLossLimit = decimal.NewFromInt(100000) // keep the daily limit out of the way
	p.MaxDrawdownFraction = 0
	state := NewState(decimal.NewFromInt(100000), time.Time{})
	g := NewGate(p, state, nil)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		g.State().ReserveOpenBet()
		at = at.Add(time.Minute)
		g.Settle(at, decimal.NewFromInt(-10))
	}

	snap := g.State().Snapshot()
	assert.True(t, snap.CircuitOpen)
	assert.Equal(t, ReasonConsecutiveLosses, snap.TripReason)

	// Latched until explicit reset, whatever the candidate looks like.
	d := g.Evaluate(goodCandidate())
	assert.Equal(t, ReasonCircuitOpen, d.Reason)

	g.State().ResetCircuit()
	d = g.Evaluate(goodCandidate())
	assert.True(t, d.Accepted)
}

func TestWinResetsLossStreak(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.DailyLossLimit = decimal.NewFromInt(100000)
	state := NewState(decimal.NewFromInt(100000), time.Time{})
	g := NewGate(p, state, nil)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g.State().ReserveOpenBet()
	g.Settle(at, decimal.NewFromInt(-10))
	g.State().ReserveOpenBet()
	g.Settle(at.Add(time.Minute), decimal.NewFromInt(-10))

	// A win clears the streak before it reaches the limit of 3.
	g.State().ReserveOpenBet()
	snap := g.Settle(at.Add(2*time.Minute), decimal.NewFromInt(25))
	assert.False(t, snap.CircuitOpen)
	assert.Equal(t, 0, snap.ConsecutiveLosses)

	// A void leaves it alone.
	g.State().ReserveOpenBet()
	g.Settle(at.Add(3*time.Minute), decimal.NewFromInt(-10))
	g.State().ReserveOpenBet()
	snap = g.Settle(at.Add(4*time.Minute), decimal.Zero)
	assert.Equal(t, 1, snap.ConsecutiveLosses)
}

func TestDrawdownTripsCircuit(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.DailyLossLimit = decimal.NewFromInt(100000)
	p.ConsecutiveLossLimit = 0
	state := NewState(decimal.NewFromInt(10000), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	g := NewGate(p, state, nil)

	// Lose 21% of peak in wins-and-losses so the streak breaker stays out.
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g.State().ReserveOpenBet()
	snap := g.Settle(at, decimal.NewFromInt(-2100))

	assert.True(t, snap.CircuitOpen)
	assert.Equal(t, ReasonMaxDrawdown, snap.TripReason)
}

func TestCircuitCooldownRecloses(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.CircuitCooldown = time.Hour
	state := NewState(decimal.NewFromInt(100000), time.Time{})
	g := NewGate(p, state, nil)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		g.State().ReserveOpenBet()
		g.Settle(at.Add(time.Duration(i)*time.Minute), decimal.NewFromInt(-10))
	}
	assert.True(t, g.State().Snapshot().CircuitOpen)

	// Still open inside the cooldown window.
	c := goodCandidate()
	c.At = at.Add(30 * time.Minute)
	assert.Equal(t, ReasonCircuitOpen, g.Evaluate(c).Reason)

	// Re-closes after the cooldown and the candidate passes.
	c.At = at.Add(2 * time.Hour)
	d := g.Evaluate(c)
	assert.True(t, d.Accepted)
	assert.False(t, g.State().Snapshot().CircuitOpen)
}

func TestSnapshotPeakTracking(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.DailyLossLimit = decimal.NewFromInt(100000)
	p.ConsecutiveLossLimit = 0
	p.MaxDrawdownFraction = 0.9
	state := NewState(decimal.NewFromInt(1000), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	g := NewGate(p, state, nil)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g.State().ReserveOpenBet()
	g.Settle(at, decimal.NewFromInt(500))
	g.State().ReserveOpenBet()
	snap := g.Settle(at.Add(time.Minute), decimal.NewFromInt(-200))

	assert.True(t, snap.PeakBankroll.Equal(decimal.NewFromInt(1500)), "peak %s", snap.PeakBankroll)
	assert.True(t, snap.Bankroll.Equal(decimal.NewFromInt(1300)))
}
