package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := NewSQLite(path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func testEntry(key string, placedAt time.Time) Entry {
	return Entry{
		Key:         key,
		AuditID:     "01HXAMPLE" + key,
		MarketID:    "match-9",
		Selection:   "home",
		Stake:       decimal.RequireFromString("190.91"),
		Odds:        2.10,
		Probability: 0.55,
		Edge:        0.155,
		Result:      ResultPending,
		PlacedAt:    placedAt,
	}
}

// Both stores must behave identically; run the same suite over each.
func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": newTestSQLite(t),
		"memory": NewMemory(),
	}
}

func TestReserveIsIdempotent(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			placed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

			ok, err := s.Reserve(ctx, testEntry("bet-42", placed))
			assert.NoError(t, err)
			assert.True(t, ok)

			// Same key again: no second row, no error.
			dup := testEntry("bet-42", placed.Add(time.Hour))
			dup.Stake = decimal.NewFromInt(999)
			ok, err = s.Reserve(ctx, dup)
			assert.NoError(t, err)
			assert.False(t, ok)

			got, err := s.Get(ctx, "bet-42")
			assert.NoError(t, err)
			assert.True(t, got.Stake.Equal(decimal.RequireFromString("190.91")),
				"first write must win, got stake %s", got.Stake)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUpdateSettlement(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			placed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

			e := testEntry("bet-7", placed)
			_, err := s.Reserve(ctx, e)
			assert.NoError(t, err)

			settled := placed.Add(3 * time.Hour)
			e.Result = ResultWin
			e.ConfirmationID = "conf-1"
			e.PL = decimal.RequireFromString("210.00")
			e.SettledAt = &settled
			assert.NoError(t, s.Update(ctx, e))

			got, err := s.Get(ctx, "bet-7")
			assert.NoError(t, err)
			assert.Equal(t, ResultWin, got.Result)
			assert.Equal(t, "conf-1", got.ConfirmationID)
			assert.True(t, got.PL.Equal(decimal.RequireFromString("210.00")))
			assert.True(t, got.Settled())
			if assert.NotNil(t, got.SettledAt) {
				assert.True(t, got.SettledAt.Equal(settled))
			}
		})
	}
}

func TestUpdateMissingKey(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			err := s.Update(context.Background(), testEntry("ghost", time.Now()))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListRangeOrdered(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

			// Insert out of order on purpose.
			for _, h := range []int{5, 1, 3} {
				e := testEntry("bet-"+string(rune('0'+h)), base.Add(time.Duration(h)*time.Hour))
				_, err := s.Reserve(ctx, e)
				assert.NoError(t, err)
			}

			got, err := s.ListRange(ctx, base, base.Add(4*time.Hour))
			assert.NoError(t, err)
			if assert.Len(t, got, 2) {
				assert.Equal(t, "bet-1", got[0].Key)
				assert.Equal(t, "bet-3", got[1].Key)
			}
		})
	}
}

func TestListByResult(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

			pending := testEntry("p1", base)
			_, err := s.Reserve(ctx, pending)
			assert.NoError(t, err)

			rejected := testEntry("r1", base.Add(time.Minute))
			rejected.Result = ResultRejected
			rejected.Reason = "no_value"
			_, err = s.Reserve(ctx, rejected)
			assert.NoError(t, err)

			got, err := s.ListByResult(ctx, ResultRejected)
			assert.NoError(t, err)
			if assert.Len(t, got, 1) {
				assert.Equal(t, "r1", got[0].Key)
				assert.Equal(t, "no_value", got[0].Reason)
			}
		})
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			placed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

			const callers = 8
			wins := make(chan bool, callers)
			for i := 0; i < callers; i++ {
				go func() {
					ok, err := s.Reserve(ctx, testEntry("bet-42", placed))
					assert.NoError(t, err)
					wins <- ok
				}()
			}

			won := 0
			for i := 0; i < callers; i++ {
				if <-wins {
					won++
				}
			}
			assert.Equal(t, 1, won, "exactly one caller may reserve a key")
		})
	}
}
