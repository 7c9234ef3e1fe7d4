package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Value is the net liquidation value of p at the given prices:
// cash + Σ long×price − Σ short×price.
//
// Shorts are marked at the current price, not their cost basis, so an
// unrealized short loss lowers the value. A ticker with no price contributes 0;
// use MissingPrices to decide whether that invalidates the valuation.
func Value(p *Portfolio, prices map[string]decimal.Decimal) decimal.Decimal {
	value := p.Cash
	for t, pos := range p.Positions {
		value = value.Add(marked(*pos, prices[t]))
	}
	return value
}

// Value is the net liquidation value of the snapshot at the given prices.
func (s Snapshot) Value(prices map[string]decimal.Decimal) decimal.Decimal {
	value := s.Cash
	for t, pos := range s.Positions {
		value = value.Add(marked(pos, prices[t]))
	}
	return value
}

func marked(pos Position, price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(pos.Long - pos.Short))
}

// Exposure returns the gross market value of all long holdings and of all
// short liabilities, both as positive amounts.
func Exposure(p *Portfolio, prices map[string]decimal.Decimal) (long, short decimal.Decimal) {
	long, short = decimal.Zero, decimal.Zero
	for t, pos := range p.Positions {
		price := prices[t]
		long = long.Add(price.Mul(decimal.NewFromInt(pos.Long)))
		short = short.Add(price.Mul(decimal.NewFromInt(pos.Short)))
	}
	return long, short
}

// MissingPrices lists the tickers holding shares that have no price entry.
func MissingPrices(p *Portfolio, prices map[string]decimal.Decimal) []string {
	var out []string
	for t, pos := range p.Positions {
		if pos.Flat() {
			continue
		}
		if _, ok := prices[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
