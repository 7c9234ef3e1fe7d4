package strategies

import (
	"context"
	"time"

	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// BuyAndHold buys every ticker the first day it sees a price for it and
// then holds.
type BuyAndHold struct {
	sizer  *sizer
	hist   history
	bought map[string]bool
}

func NewBuyAndHold(p Params) *BuyAndHold {
	return &BuyAndHold{
		sizer:  newSizer(p),
		hist:   history{},
		bought: make(map[string]bool),
	}
}

func (b *BuyAndHold) Name() string { return "buy-and-hold" }

func (b *BuyAndHold) Decide(_ context.Context, _ time.Time, snap portfolio.Snapshot, prices map[string]decimal.Decimal) (Decisions, error) {
	b.hist.add(prices)

	var pending []string
	for t := range prices {
		if !b.bought[t] {
			pending = append(pending, t)
		}
	}
	out := Decisions{}
	if len(pending) == 0 {
		return out, nil
	}

	b.sizer.refresh(pending, b.hist, snap)
	for _, t := range pending {
		q := b.sizer.shares(t, prices[t], snap)
		if q < 1 {
			continue
		}
		out[t] = Decision{Action: sim.Buy, Quantity: q, Reasoning: "initial allocation"}
		b.bought[t] = true
	}
	return out, nil
}
