package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRestoreContinuesSession(t *testing.T) {
	t.Parallel()

	savedAt := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Bankroll:          decimal.NewFromInt(9000),
		DayRealized:       decimal.NewFromInt(-1000),
		ConsecutiveLosses: 2,
		OpenBets:          1,
		PeakBankroll:      decimal.NewFromInt(10000),
		CircuitOpen:       true,
		TrippedAt:         savedAt.Add(-time.Hour),
		TripReason:        ReasonConsecutiveLosses,
	}

	state := Restore(snap, savedAt)
	got := state.Snapshot()

	assert.True(t, got.Bankroll.Equal(snap.Bankroll))
	assert.True(t, got.DayRealized.Equal(snap.DayRealized))
	assert.Equal(t, 2, got.ConsecutiveLosses)
	assert.Equal(t, 1, got.OpenBets)
	assert.True(t, got.PeakBankroll.Equal(snap.PeakBankroll), "restored peak survives")
	assert.True(t, got.CircuitOpen)
	assert.Equal(t, ReasonConsecutiveLosses, got.TripReason)

	// A latched circuit stays latched across the restore.
	g := NewGate(testPolicy(), state, nil)
	c := goodCandidate()
	c.At = savedAt.Add(time.Minute)
	assert.Equal(t, ReasonCircuitOpen, g.Evaluate(c).Reason)
}

func TestRestoreRollsDayForward(t *testing.T) {
	t.Parallel()

	savedAt := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	state := Restore(Snapshot{
		Bankroll:     decimal.NewFromInt(9500),
		DayRealized:  decimal.NewFromInt(-500),
		PeakBankroll: decimal.NewFromInt(9500),
	}, savedAt)

	// Settling the next day opens a fresh daily bucket.
	nextDay := savedAt.Add(12 * time.Hour)
	g := NewGate(testPolicy(), state, nil)
	snap := g.Settle(nextDay, decimal.NewFromInt(-100))

	assert.True(t, snap.DayRealized.Equal(decimal.NewFromInt(-100)),
		"day P/L %s", snap.DayRealized)
}
