package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newPortfolio(t *testing.T, cash, margin string) *portfolio.Portfolio {
	t.Helper()
	p, err := portfolio.New(d(cash), d(margin), "XYZ")
	require.NoError(t, err)
	return p
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]interface{}{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func TestBuyAffordable(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "10000", "0.5")
	n := ExecuteTrade(p, "XYZ", Buy, 10, d("100"))

	assert.Equal(t, int64(10), n)
	assertDecimal(t, "9000", p.Cash)
	assert.Equal(t, int64(10), p.Positions["XYZ"].Long)
	assertDecimal(t, "100", p.Positions["XYZ"].LongCostBasis)
}

func TestBuyClippedToCash(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "10000", "0.5")
	n := ExecuteTrade(p, "XYZ", Buy, 200, d("100"))

	assert.Equal(t, int64(100), n)
	assertDecimal(t, "0", p.Cash)
	assert.Equal(t, int64(100), p.Positions["XYZ"].Long)

	// nothing left to spend
	assert.Equal(t, int64(0), ExecuteTrade(p, "XYZ", Buy, 1, d("100")))
	assert.Equal(t, int64(100), p.Positions["XYZ"].Long)
}

func TestBuyWeightedCostBasis(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "10000", "0")
	ExecuteTrade(p, "XYZ", Buy, 10, d("100"))
	ExecuteTrade(p, "XYZ", Buy, 30, d("80"))

	// (10*100 + 30*80) / 40
	assertDecimal(t, "85", p.Positions["XYZ"].LongCostBasis)
	assertDecimal(t, "6600", p.Cash)
}

func TestSell(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "10000", "0.5")
	ExecuteTrade(p, "XYZ", Buy, 10, d("100"))

	n := ExecuteTrade(p, "XYZ", Sell, 4, d("110"))
	assert.Equal(t, int64(4), n)
	assertDecimal(t, "40", p.RealizedGains["XYZ"].Long)
	assertDecimal(t, "9440", p.Cash)
	assertDecimal(t, "100", p.Positions["XYZ"].LongCostBasis)

	// clipped to the 6 remaining shares, basis reset when flat
	n = ExecuteTrade(p, "XYZ", Sell, 50, d("90"))
	assert.Equal(t, int64(6), n)
	assertDecimal(t, "-20", p.RealizedGains["XYZ"].Long)
	assert.Equal(t, int64(0), p.Positions["XYZ"].Long)
	assertDecimal(t, "0", p.Positions["XYZ"].LongCostBasis)
	assertDecimal(t, "9980", p.Cash)
}

func TestSellWithoutPosition(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "100", "0.5")
	assert.Equal(t, int64(0), ExecuteTrade(p, "XYZ", Sell, 5, d("10")))
	assert.Equal(t, int64(0), ExecuteTrade(p, "NOPE", Sell, 5, d("10")))
	_, created := p.Positions["NOPE"]
	assert.False(t, created)
}

func TestShortAndCoverScenario(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "1000", "0.5")

	n := ExecuteTrade(p, "XYZ", Short, 10, d("50"))
	require.Equal(t, int64(10), n)
	assertDecimal(t, "1250", p.Cash)
	assertDecimal(t, "250", p.MarginUsed)
	assertDecimal(t, "250", p.Positions["XYZ"].ShortMarginUsed)
	assertDecimal(t, "50", p.Positions["XYZ"].ShortCostBasis)
	assert.Equal(t, int64(10), p.Positions["XYZ"].Short)

	n = ExecuteTrade(p, "XYZ", Cover, 10, d("40"))
	require.Equal(t, int64(10), n)
	assertDecimal(t, "100", p.RealizedGains["XYZ"].Short)
	assertDecimal(t, "1100", p.Cash) // 1250 + 250 - 400
	assertDecimal(t, "0", p.MarginUsed)
	assert.Equal(t, int64(0), p.Positions["XYZ"].Short)
	assertDecimal(t, "0", p.Positions["XYZ"].ShortCostBasis)
	assertDecimal(t, "0", p.Positions["XYZ"].ShortMarginUsed)
	assert.NoError(t, p.CheckInvariants())
}

func TestShortClippedByMargin(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "1000", "0.5")
	// 100 shares at 50 needs 2500 margin; 1000 / 25 = 40 shares
	n := ExecuteTrade(p, "XYZ", Short, 100, d("50"))
	assert.Equal(t, int64(40), n)
	assertDecimal(t, "1000", p.MarginUsed)
	assertDecimal(t, "2000", p.Cash) // 1000 + 2000 - 1000
	assert.NoError(t, p.CheckInvariants())
}

func TestShortWithZeroMarginAlwaysFills(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "0", "0")
	n := ExecuteTrade(p, "XYZ", Short, 1000, d("50"))
	assert.Equal(t, int64(1000), n)
	assertDecimal(t, "50000", p.Cash)
	assertDecimal(t, "0", p.MarginUsed)
}

func TestShortWeightedCostBasis(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "10000", "0.5")
	ExecuteTrade(p, "XYZ", Short, 10, d("50"))
	ExecuteTrade(p, "XYZ", Short, 10, d("70"))
	assertDecimal(t, "60", p.Positions["XYZ"].ShortCostBasis)
	assertDecimal(t, "600", p.MarginUsed)
}

func TestPartialCoverReleasesProportionalMargin(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "1000", "0.5")
	ExecuteTrade(p, "XYZ", Short, 10, d("50"))

	n := ExecuteTrade(p, "XYZ", Cover, 4, d("45"))
	assert.Equal(t, int64(4), n)
	assertDecimal(t, "150", p.Positions["XYZ"].ShortMarginUsed)
	assertDecimal(t, "150", p.MarginUsed)
	assertDecimal(t, "20", p.RealizedGains["XYZ"].Short)
	assertDecimal(t, "1170", p.Cash) // 1250 + 100 - 180
	assertDecimal(t, "50", p.Positions["XYZ"].ShortCostBasis)

	// over-ask is clipped to what is still short
	n = ExecuteTrade(p, "XYZ", Cover, 99, d("45"))
	assert.Equal(t, int64(6), n)
	assert.NoError(t, p.CheckInvariants())
}

func TestCoverClippedWhenCashCannotPay(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "1000", "0.5")
	ExecuteTrade(p, "XYZ", Short, 10, d("50"))
	// cash 1250, margin 250; a cover at 200 costs 2000 - 250 = 1750 net
	n := ExecuteTrade(p, "XYZ", Cover, 10, d("200"))

	assert.Equal(t, int64(7), n) // 7*200 - 7*25 = 1225 <= 1250
	assert.False(t, p.Cash.IsNegative())
	assert.Equal(t, int64(3), p.Positions["XYZ"].Short)
	assert.NoError(t, p.CheckInvariants())
}

func TestInvalidOrdersAreNoOps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action Action
		qty    float64
		price  string
	}{
		{"zero quantity", Buy, 0, "10"},
		{"fractional below one", Buy, 0.99, "10"},
		{"negative quantity", Sell, -5, "10"},
		{"zero price", Buy, 5, "0"},
		{"negative price", Short, 5, "-1"},
		{"NaN quantity", Buy, math.NaN(), "10"},
		{"infinite buy", Buy, math.Inf(1), "3"},
		{"infinite short", Short, math.Inf(1), "3"},
		{"negative infinity", Sell, math.Inf(-1), "3"},
		{"unknown action", Action("yolo"), 5, "10"},
		{"hold", Hold, 5, "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPortfolio(t, "1000", "0.5")
			before := p.Snapshot()
			assert.Equal(t, int64(0), ExecuteTrade(p, "XYZ", tt.action, tt.qty, d(tt.price)))
			assert.Equal(t, before, p.Snapshot())
		})
	}
}

func TestQuantityIsFloored(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "1000", "0.5")
	assert.Equal(t, int64(3), ExecuteTrade(p, "XYZ", Buy, 3.99, d("10")))
	assertDecimal(t, "970", p.Cash)
}

func TestHoldNeverChangesState(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	p := newPortfolio(t, "5000", "0.3")
	ExecuteTrade(p, "XYZ", Buy, 10, d("20"))
	ExecuteTrade(p, "XYZ", Short, 5, d("21"))

	for i := 0; i < 500; i++ {
		before := p.Snapshot()
		q := (rng.Float64() - 0.25) * 1e6
		price := decimal.NewFromFloat((rng.Float64() - 0.25) * 1e4)
		assert.Equal(t, int64(0), ExecuteTrade(p, "XYZ", Hold, q, price))
		assert.Equal(t, before, p.Snapshot())
	}
}

// Random trade sequences must never break the accounting invariants.
func TestRandomSequencesKeepInvariants(t *testing.T) {
	t.Parallel()

	actions := []Action{Buy, Sell, Short, Cover, Hold, Action("bogus")}
	tickers := []string{"AAA", "BBB", "CCC"}

	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		margin := decimal.NewFromFloat(float64(rng.Intn(11)) / 10)
		p, err := portfolio.New(d("25000"), margin, tickers...)
		require.NoError(t, err)

		for i := 0; i < 400; i++ {
			tk := tickers[rng.Intn(len(tickers))]
			a := actions[rng.Intn(len(actions))]
			q := rng.Float64() * 300
			price := decimal.NewFromFloat(1 + rng.Float64()*250).Round(2)

			n := ExecuteTrade(p, tk, a, q, price)
			require.GreaterOrEqual(t, n, int64(0))
			require.LessOrEqual(t, n, int64(math.Floor(q)))
			require.NoError(t, p.CheckInvariants(), "seed %d step %d", seed, i)
		}
	}
}

func TestExecuteReportsFill(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, "1000", "0.5")

	buy := Execute(p, Order{Ticker: "XYZ", Action: Buy, Quantity: 150, Price: d("10")})
	assert.True(t, buy.Filled())
	assert.True(t, buy.Clipped())
	assert.False(t, buy.Closing())
	assert.Equal(t, int64(100), buy.Quantity)
	assertDecimal(t, "1000", buy.Notional())
	assertDecimal(t, "0", buy.RealizedPL)

	sell := Execute(p, Order{Ticker: "XYZ", Action: Sell, Quantity: 40, Price: d("12.5")})
	assert.True(t, sell.Closing())
	assert.False(t, sell.Clipped())
	assertDecimal(t, "500", sell.Notional())
	assertDecimal(t, "100", sell.RealizedPL)

	none := Execute(p, Order{Ticker: "XYZ", Action: Cover, Quantity: 5, Price: d("10")})
	assert.False(t, none.Filled())
	assert.False(t, none.Closing())
	assert.True(t, none.Notional().IsZero())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(Buy, 1, d("1")))
	assert.NoError(t, Validate(Hold, 0, d("0")))
	assert.ErrorIs(t, Validate(Action("moon"), 1, d("1")), ErrInvalidOrder)
	assert.ErrorIs(t, Validate(Sell, 0.5, d("1")), ErrInvalidOrder)
	assert.ErrorIs(t, Validate(Short, 1, d("0")), ErrInvalidOrder)
	assert.ErrorIs(t, Validate(Buy, math.Inf(1), d("3")), ErrInvalidOrder)
	assert.ErrorIs(t, Validate(Cover, math.NaN(), d("3")), ErrInvalidOrder)
	assert.NoError(t, Validate(Buy, 1e300, d("3")))
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Buy, ParseAction(" BUY "))
	assert.Equal(t, Cover, ParseAction("Cover"))
	assert.False(t, ParseAction("liquidate").Valid())
	assert.False(t, Hold.Trades())
	assert.True(t, Short.Trades())
}
