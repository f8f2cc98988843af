package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakemill/stakemill/risk"
)

func TestRiskStateRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, _, err = store.LoadRiskState(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	snap := risk.Snapshot{
		Bankroll:          decimal.NewFromInt(9400),
		DayRealized:       decimal.NewFromInt(-600),
		ConsecutiveLosses: 2,
		OpenBets:          3,
		PeakBankroll:      decimal.NewFromInt(10000),
		CircuitOpen:       true,
		TrippedAt:         at.Add(-time.Hour),
		TripReason:        risk.ReasonDailyLossLimit,
	}
	require.NoError(t, store.SaveRiskState(ctx, snap, at))

	got, savedAt, err := store.LoadRiskState(ctx)
	require.NoError(t, err)
	assert.True(t, got.Bankroll.Equal(snap.Bankroll))
	assert.True(t, got.DayRealized.Equal(snap.DayRealized))
	assert.Equal(t, 2, got.ConsecutiveLosses)
	assert.Equal(t, 3, got.OpenBets)
	assert.True(t, got.PeakBankroll.Equal(snap.PeakBankroll))
	assert.True(t, got.CircuitOpen)
	assert.Equal(t, risk.ReasonDailyLossLimit, got.TripReason)
	assert.True(t, savedAt.Equal(at))

	// Overwrite keeps a single row.
	snap.CircuitOpen = false
	snap.TripReason = risk.ReasonNone
	snap.TrippedAt = time.Time{}
	require.NoError(t, store.SaveRiskState(ctx, snap, at.Add(time.Hour)))

	got, _, err = store.LoadRiskState(ctx)
	require.NoError(t, err)
	assert.False(t, got.CircuitOpen)
	assert.True(t, got.TrippedAt.IsZero())
}
