package risk

import (
	"math"
	"sort"

	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
)

// Limit is the sizing verdict for one ticker.
type Limit struct {
	Ticker        string             `json:"ticker"`
	Price         float64            `json:"current_price"`
	Volatility    VolatilityMetrics  `json:"volatility_metrics"`
	Correlation   CorrelationMetrics `json:"correlation_metrics"`
	PortfolioVal  float64            `json:"portfolio_value"`
	PositionValue float64            `json:"current_position_value"`
	BasePct       float64            `json:"base_position_limit_pct"`
	CorrMult      float64            `json:"correlation_multiplier"`
	CombinedPct   float64            `json:"combined_position_limit_pct"`
	PositionLimit float64            `json:"position_limit"`
	Remaining     float64            `json:"remaining_limit"`

	// Available is the notional that may still be added, capped at cash.
	// It is 0 when the ticker has too little price history.
	Available float64 `json:"remaining_position_limit"`
	Reason    string  `json:"reason,omitempty"`
}

// MaxShares is how many whole shares fit in Available at Price.
func (l Limit) MaxShares() int64 {
	if l.Price <= 0 || l.Available <= 0 {
		return 0
	}
	return int64(math.Floor(l.Available / l.Price))
}

// Limits computes a Limit for each ticker. history holds each ticker's
// closes up to and including today, oldest first, all on the same dates.
func (p Policy) Limits(tickers []string, history map[string][]float64, snap portfolio.Snapshot) map[string]Limit {
	prices := make(map[string]decimal.Decimal, len(history))
	returns := make(map[string][]float64, len(history))
	vols := make(map[string]VolatilityMetrics, len(history))

	for t, closes := range history {
		vols[t] = p.Volatility(closes)
		if len(closes) < 2 {
			continue
		}
		prices[t] = decimal.NewFromFloat(closes[len(closes)-1])
		if r := Returns(closes); len(r) > 0 {
			returns[t] = r
		}
	}

	corr := p.Correlations(returns)
	total, _ := snap.Value(prices).Float64()
	cash, _ := snap.Cash.Float64()

	var active []string
	for t, pos := range snap.Positions {
		if pos.Net() != 0 {
			active = append(active, t)
		}
	}
	sort.Strings(active)

	out := make(map[string]Limit, len(tickers))
	for _, t := range tickers {
		px, ok := prices[t]
		if !ok || !px.IsPositive() {
			out[t] = Limit{Ticker: t, Reason: "missing price history"}
			continue
		}
		price, _ := px.Float64()
		vm := vols[t]
		pos := snap.Position(t)

		l := Limit{
			Ticker:        t,
			Price:         price,
			Volatility:    vm,
			PortfolioVal:  total,
			PositionValue: math.Abs(float64(pos.Long-pos.Short) * price),
			BasePct:       p.VolatilityAdjustedLimit(vm.Annualized),
			CorrMult:      1.0,
		}

		if corr != nil {
			others := without(active, t)
			if len(others) == 0 {
				others = without(sortedKeys(corr), t)
			}
			if cm, ok := corr.against(t, others); ok {
				l.Correlation = cm
				l.CorrMult = CorrelationMultiplier(cm.Average)
			}
		}

		l.CombinedPct = l.BasePct * l.CorrMult
		l.PositionLimit = total * l.CombinedPct
		l.Remaining = l.PositionLimit - l.PositionValue
		l.Available = math.Min(l.Remaining, cash)
		out[t] = l
	}
	return out
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m CorrelationMatrix) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
