package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cash    string
		margin  string
		wantErr error
	}{
		{name: "valid", cash: "10000", margin: "0.5"},
		{name: "zero margin", cash: "10000", margin: "0"},
		{name: "full margin", cash: "10000", margin: "1"},
		{name: "margin above one", cash: "10000", margin: "1.01", wantErr: ErrInvalidMarginRequirement},
		{name: "negative margin", cash: "10000", margin: "-0.1", wantErr: ErrInvalidMarginRequirement},
		{name: "negative cash", cash: "-1", margin: "0.5", wantErr: ErrNegativeCash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(d(tt.cash), d(tt.margin), "AAPL", "MSFT")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"AAPL", "MSFT"}, p.Tickers())
			assert.True(t, p.MarginUsed.IsZero())
			assert.NoError(t, p.CheckInvariants())
			for _, tk := range p.Tickers() {
				assert.True(t, p.Positions[tk].Flat())
				assert.True(t, p.RealizedGains[tk].Total().IsZero())
			}
		})
	}
}

func TestCheckInvariants(t *testing.T) {
	t.Parallel()

	t.Run("margin mismatch", func(t *testing.T) {
		p, err := New(d("1000"), d("0.5"), "AAPL")
		require.NoError(t, err)
		p.Position("AAPL").Short = 10
		p.Position("AAPL").ShortCostBasis = d("50")
		p.Position("AAPL").ShortMarginUsed = d("250")
		assert.Error(t, p.CheckInvariants())

		p.MarginUsed = d("250")
		assert.NoError(t, p.CheckInvariants())
	})

	t.Run("stale cost basis", func(t *testing.T) {
		p, err := New(d("1000"), d("0.5"), "AAPL")
		require.NoError(t, err)
		p.Position("AAPL").LongCostBasis = d("12")
		assert.ErrorContains(t, p.CheckInvariants(), "long cost basis")
	})

	t.Run("negative cash", func(t *testing.T) {
		p, err := New(d("1000"), d("0.5"))
		require.NoError(t, err)
		p.Cash = d("-0.01")
		assert.ErrorContains(t, p.CheckInvariants(), "cash is negative")
	})
}

func TestSnapshotIsDetached(t *testing.T) {
	t.Parallel()

	p, err := New(d("1000"), d("0.5"), "AAPL")
	require.NoError(t, err)
	p.Position("AAPL").Long = 5

	snap := p.Snapshot()
	p.Position("AAPL").Long = 7
	p.Gains("AAPL").Long = d("3")

	assert.Equal(t, int64(5), snap.Position("AAPL").Long)
	assert.True(t, snap.RealizedGains["AAPL"].Long.IsZero())
	assert.Equal(t, Position{}, snap.Position("MSFT"))
}

func TestTotalRealized(t *testing.T) {
	t.Parallel()

	p, err := New(d("1000"), d("0"), "A", "B")
	require.NoError(t, err)
	p.Gains("A").Long = d("10.5")
	p.Gains("B").Short = d("-2.25")
	assert.True(t, p.TotalRealized().Equal(d("8.25")))
}
