package strategies

import (
	"math"

	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/risk"
	"github.com/shopspring/decimal"
)

// history accumulates each ticker's daily closes as seen by a source. The
// runner only calls Decide on days with a close for every ticker, so the
// series stay aligned.
type history map[string][]float64

func (h history) add(prices map[string]decimal.Decimal) {
	for t, p := range prices {
		f, _ := p.Float64()
		h[t] = append(h[t], f)
	}
}

// sizer turns an intent to open a position into a share count.
type sizer struct {
	quantity  float64
	useRisk   bool
	policy    risk.Policy
	limits    map[string]risk.Limit
	evenSplit int
}

func newSizer(p Params) *sizer {
	pol := p.Policy
	if pol.MaxPositionPct == 0 {
		pol = risk.DefaultPolicy()
	}
	return &sizer{
		quantity:  p.Quantity,
		useRisk:   p.UseRiskLimits,
		policy:    pol,
		evenSplit: len(p.Tickers),
	}
}

// refresh recomputes risk limits for the day. It is a no-op unless risk
// sizing is in use.
func (s *sizer) refresh(tickers []string, h history, snap portfolio.Snapshot) {
	if !s.useRisk || s.quantity > 0 {
		return
	}
	s.limits = s.policy.Limits(tickers, h, snap)
}

// shares is the order size for ticker at price.
func (s *sizer) shares(ticker string, price decimal.Decimal, snap portfolio.Snapshot) float64 {
	if s.quantity > 0 {
		return s.quantity
	}
	if s.useRisk {
		if l, ok := s.limits[ticker]; ok {
			return float64(l.MaxShares())
		}
		return 0
	}
	if !price.IsPositive() {
		return 0
	}
	n := s.evenSplit
	if n <= 0 {
		n = 1
	}
	cash, _ := snap.Cash.Float64()
	px, _ := price.Float64()
	return math.Floor(cash / float64(n) / px)
}
