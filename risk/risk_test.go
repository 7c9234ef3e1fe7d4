package risk

import (
	"math"
	"testing"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolatilityAdjustedLimitBands(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		vol  float64
		want float64
	}{
		{0.10, 0.15},
		{0.25, 0.15 * 0.85},
		{0.40, 0.15 * (0.85 - 0.15*0.4)},
		{0.60, 0.15 * (0.65 - 0.10*0.6)},
		{0.90, 0.15 * 0.30},
		{1.50, 0.15 * 0.13},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, p.VolatilityAdjustedLimit(tt.vol), 1e-12, "vol %.2f", tt.vol)
	}
}

func TestCorrelationMultiplier(t *testing.T) {
	assert.Equal(t, 0.70, CorrelationMultiplier(0.9))
	assert.Equal(t, 0.85, CorrelationMultiplier(0.6))
	assert.Equal(t, 1.00, CorrelationMultiplier(0.5))
	assert.Equal(t, 1.05, CorrelationMultiplier(0.2))
	assert.Equal(t, 1.10, CorrelationMultiplier(-0.3))
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, Pearson(a, []float64{2, 4, 6, 8, 10}), 1e-12)
	assert.InDelta(t, -1.0, Pearson(a, []float64{5, 4, 3, 2, 1}), 1e-12)
	assert.True(t, math.IsNaN(Pearson(a, []float64{1, 1, 1, 1, 1})))
	assert.True(t, math.IsNaN(Pearson(a, a[:3])))
}

func TestVolatilityFallback(t *testing.T) {
	p := DefaultPolicy()
	vm := p.Volatility([]float64{100, 101})
	assert.Equal(t, 0.03, vm.Daily)
	assert.InDelta(t, 0.03*math.Sqrt(365), vm.Annualized, 1e-12)
	assert.Equal(t, 100.0, vm.Percentile)
	assert.Equal(t, 1, vm.DataPoints)
}

func TestVolatilityShortHistoryHasMedianPercentile(t *testing.T) {
	p := DefaultPolicy()
	vm := p.Volatility([]float64{100, 110, 99, 108.9})
	assert.Equal(t, 50.0, vm.Percentile)
	assert.Equal(t, 3, vm.DataPoints)
	assert.InDelta(t, vm.Daily*math.Sqrt(365), vm.Annualized, 1e-12)
}

func TestVolatilityLookbackAndPercentile(t *testing.T) {
	p := DefaultPolicy()

	// calm history followed by a violent last stretch
	closes := []float64{100}
	for i := 0; i < 80; i++ {
		step := 0.001
		if i >= 70 {
			step = 0.05
		}
		if i%2 == 0 {
			step = -step
		}
		closes = append(closes, closes[len(closes)-1]*(1+step))
	}
	vm := p.Volatility(closes)
	assert.Equal(t, 60, vm.DataPoints)
	assert.Greater(t, vm.Percentile, 0.0)
	assert.Less(t, vm.Percentile, 100.0)
}

func TestVolatilityPercentileRanksRollingWindows(t *testing.T) {
	p := DefaultPolicy()
	p.LookbackDays = 3
	p.PercentileWindow = 3

	closes := []float64{100, 101, 99, 104, 103, 110, 95, 96, 97, 96.5}
	vm := p.Volatility(closes)

	returns := Returns(closes)
	below, total := 0, 0
	for end := 3; end <= len(returns); end++ {
		sd, err := indicators.StdDev(returns[:end], 3)
		require.NoError(t, err)
		total++
		if sd <= vm.Daily {
			below++
		}
	}
	require.Equal(t, 7, total)
	assert.InDelta(t, 100*float64(below)/float64(total), vm.Percentile, 1e-12)

	// the last window is the current one, so it always counts as at or below
	assert.GreaterOrEqual(t, vm.Percentile, 100.0/7)
}

func TestCorrelationsNeedEnoughRows(t *testing.T) {
	p := DefaultPolicy()
	assert.Nil(t, p.Correlations(map[string][]float64{"A": {0.1, 0.2, 0.3, 0.4, 0.5}}))
	assert.Nil(t, p.Correlations(map[string][]float64{
		"A": {0.1, 0.2, 0.3, 0.4},
		"B": {0.1, 0.2, 0.3, 0.4, 0.5},
	}))

	m := p.Correlations(map[string][]float64{
		"A": {0.1, -0.2, 0.3, -0.4, 0.5},
		"B": {9, 0.2, -0.4, 0.6, -0.8, 1.0},
	})
	require.NotNil(t, m)
	// trailing rows of B are exactly twice A
	assert.InDelta(t, 1.0, m["A"]["B"], 1e-12)
}

func walk(start float64, steps []float64) []float64 {
	out := []float64{start}
	for _, s := range steps {
		out = append(out, out[len(out)-1]*(1+s))
	}
	return out
}

func TestLimits(t *testing.T) {
	p := DefaultPolicy()
	steps := []float64{0.001, -0.002, 0.0015, -0.001, 0.002, -0.0005, 0.001}
	inv := make([]float64, len(steps))
	for i, s := range steps {
		inv[i] = -s
	}
	history := map[string][]float64{
		"AAA": walk(100, steps),
		"BBB": walk(50, steps),
		"CCC": walk(20, inv),
		"NEW": {10},
	}

	pf, err := portfolio.New(decimal.NewFromInt(100_000), decimal.RequireFromString("0.5"), "AAA", "BBB", "CCC", "NEW")
	require.NoError(t, err)
	pf.Position("AAA").Long = 100
	snap := pf.Snapshot()

	limits := p.Limits([]string{"AAA", "BBB", "CCC", "NEW"}, history, snap)
	require.Len(t, limits, 4)

	// BBB moves exactly with the only active position
	bbb := limits["BBB"]
	assert.InDelta(t, 1.0, bbb.Correlation.Average, 1e-9)
	assert.Equal(t, 0.70, bbb.CorrMult)
	assert.InDelta(t, 0.15*0.70, bbb.CombinedPct, 1e-12)

	// CCC is its mirror image
	ccc := limits["CCC"]
	assert.Equal(t, 1.10, ccc.CorrMult)

	aaa := limits["AAA"]
	priceA := history["AAA"][len(history["AAA"])-1]
	assert.InDelta(t, 100*priceA, aaa.PositionValue, 1e-6)
	assert.InDelta(t, 100_000+100*priceA, aaa.PortfolioVal, 1e-6)
	assert.InDelta(t, aaa.PositionLimit-aaa.PositionValue, aaa.Remaining, 1e-9)
	assert.LessOrEqual(t, aaa.Available, 100_000.0)

	newL := limits["NEW"]
	assert.Equal(t, 0.0, newL.Available)
	assert.Equal(t, int64(0), newL.MaxShares())
	assert.NotEmpty(t, newL.Reason)
}

func TestLimitAvailableCappedAtCash(t *testing.T) {
	p := DefaultPolicy()
	pf, err := portfolio.New(decimal.NewFromInt(100), decimal.Zero, "AAA", "BBB")
	require.NoError(t, err)
	pf.Position("BBB").Long = 1000

	history := map[string][]float64{"AAA": {10, 10.01, 10}, "BBB": {100, 100, 100}}
	l := p.Limits([]string{"AAA"}, history, pf.Snapshot())["AAA"]
	assert.Equal(t, 100.0, l.Available)
	assert.Equal(t, int64(10), l.MaxShares())
}
