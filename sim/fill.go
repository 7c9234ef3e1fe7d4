package sim

import (
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
)

// Order is a single requested trade.
type Order struct {
	Ticker   string
	Action   Action
	Quantity float64
	Price    decimal.Decimal
}

// Fill records what an order actually did to the portfolio.
type Fill struct {
	Ticker     string          `json:"ticker"`
	Action     Action          `json:"action"`
	Requested  float64         `json:"requested"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	RealizedPL decimal.Decimal `json:"realized_pl"`
}

// Filled reports whether any shares traded.
func (f Fill) Filled() bool { return f.Quantity > 0 }

// Clipped reports whether fewer shares traded than were requested.
func (f Fill) Clipped() bool { return f.Quantity < wholeShares(f.Requested) }

// Closing reports whether the fill reduced an existing position.
func (f Fill) Closing() bool {
	return f.Filled() && (f.Action == Sell || f.Action == Cover)
}

// Notional is quantity × price.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(decimal.NewFromInt(f.Quantity))
}

// Execute runs ExecuteTrade for o and reports the result, including the
// realized P/L booked by a sell or cover.
func Execute(p *portfolio.Portfolio, o Order) Fill {
	before := realized(p, o.Ticker)
	n := ExecuteTrade(p, o.Ticker, o.Action, o.Quantity, o.Price)
	return Fill{
		Ticker:     o.Ticker,
		Action:     o.Action,
		Requested:  o.Quantity,
		Quantity:   n,
		Price:      o.Price,
		RealizedPL: realized(p, o.Ticker).Sub(before),
	}
}

func realized(p *portfolio.Portfolio, ticker string) decimal.Decimal {
	if g, ok := p.RealizedGains[ticker]; ok {
		return g.Total()
	}
	return decimal.Zero
}
