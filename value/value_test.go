package value

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestImpliedProbability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		odds float64
		want float64
	}{
		{"even money", 2.0, 0.5},
		{"short favourite", 1.25, 0.8},
		{"outsider", 10.0, 0.1},
		{"zero odds", 0, 0},
		{"negative odds", -2, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ImpliedProbability(tt.odds), 1e-12)
		})
	}
}

func TestEdge(t *testing.T) {
	t.Parallel()

	// p=0.55 at odds 2.10: 0.55*2.10 - 1 = 0.155
	assert.InDelta(t, 0.155, Edge(0.55, 2.10), 1e-12)

	// fair price has zero edge
	assert.InDelta(t, 0.0, Edge(0.5, 2.0), 1e-12)

	// market beats the forecast
	assert.Less(t, Edge(0.4, 2.0), 0.0)
}

func TestExpectedValue(t *testing.T) {
	t.Parallel()

	stake := decimal.NewFromInt(100)

	// p=0.55, o=2.10: 100 * (0.55*1.10 - 0.45) = 15.50
	ev := ExpectedValue(0.55, 2.10, stake)
	assert.True(t, ev.Equal(decimal.RequireFromString("15.5")), "got %s", ev)

	// fair bet is EV zero
	ev = ExpectedValue(0.5, 2.0, stake)
	assert.True(t, ev.IsZero(), "got %s", ev)

	// negative edge is negative EV
	ev = ExpectedValue(0.4, 2.0, stake)
	assert.True(t, ev.IsNegative(), "got %s", ev)
}

func TestSeriesStats(t *testing.T) {
	t.Parallel()

	pls := []decimal.Decimal{
		decimal.NewFromInt(10),
		decimal.NewFromInt(-10),
		decimal.NewFromInt(10),
		decimal.NewFromInt(-10),
	}

	assert.True(t, Mean(pls).IsZero())
	assert.InDelta(t, 100.0, Variance(pls), 1e-9)
	assert.InDelta(t, 10.0, StdDev(pls), 1e-9)
	assert.InDelta(t, 0.0, Sharpe(pls), 1e-9)

	winners := []decimal.Decimal{
		decimal.NewFromInt(10),
		decimal.NewFromInt(20),
		decimal.NewFromInt(30),
	}
	assert.Greater(t, Sharpe(winners), 0.0)
}

func TestSeriesStatsDegenerate(t *testing.T) {
	t.Parallel()

	assert.True(t, Mean(nil).IsZero())
	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, Sharpe([]decimal.Decimal{decimal.NewFromInt(5)}))

	// flat series has no defined Sharpe
	flat := []decimal.Decimal{decimal.NewFromInt(5), decimal.NewFromInt(5)}
	assert.Equal(t, 0.0, Sharpe(flat))
}
