package sim

import (
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
)

// ExecuteTrade applies one order to p and returns the number of shares that
// actually traded.
//
// The requested quantity is floored to whole shares before any accounting.
// Orders that cannot be afforded are clipped to the largest affordable whole
// quantity; sells and covers are clipped to the shares held. A non-positive
// price or quantity, hold, or an unknown action leaves p untouched and
// returns 0. The function performs no I/O and touches nothing but p.
func ExecuteTrade(p *portfolio.Portfolio, ticker string, action Action, requested float64, price decimal.Decimal) int64 {
	qty := wholeShares(requested)
	if qty <= 0 || !price.IsPositive() {
		return 0
	}

	switch action {
	case Buy:
		return buy(p, ticker, qty, price)
	case Sell:
		return sell(p, ticker, qty, price)
	case Short:
		return short(p, ticker, qty, price)
	case Cover:
		return cover(p, ticker, qty, price)
	default:
		return 0
	}
}

func buy(p *portfolio.Portfolio, ticker string, qty int64, price decimal.Decimal) int64 {
	cost := price.Mul(decimal.NewFromInt(qty))
	if cost.GreaterThan(p.Cash) {
		qty = affordable(p.Cash, price)
		if qty <= 0 {
			return 0
		}
		cost = price.Mul(decimal.NewFromInt(qty))
	}

	pos := p.Position(ticker)
	held := decimal.NewFromInt(pos.Long)
	pos.LongCostBasis = pos.LongCostBasis.Mul(held).Add(cost).Div(decimal.NewFromInt(pos.Long + qty))
	pos.Long += qty
	p.Cash = p.Cash.Sub(cost)
	return qty
}

func sell(p *portfolio.Portfolio, ticker string, qty int64, price decimal.Decimal) int64 {
	pos, ok := p.Positions[ticker]
	if !ok {
		return 0
	}
	if qty > pos.Long {
		qty = pos.Long
	}
	if qty <= 0 {
		return 0
	}

	shares := decimal.NewFromInt(qty)
	g := p.Gains(ticker)
	g.Long = g.Long.Add(price.Sub(pos.LongCostBasis).Mul(shares))

	pos.Long -= qty
	p.Cash = p.Cash.Add(price.Mul(shares))
	if pos.Long == 0 {
		pos.LongCostBasis = decimal.Zero
	}
	return qty
}

func short(p *portfolio.Portfolio, ticker string, qty int64, price decimal.Decimal) int64 {
	mr := p.MarginRequirement
	proceeds := price.Mul(decimal.NewFromInt(qty))
	margin := proceeds.Mul(mr)

	if margin.GreaterThan(p.Cash) {
		// margin > cash implies mr > 0
		qty = affordable(p.Cash, price.Mul(mr))
		if qty <= 0 {
			return 0
		}
		proceeds = price.Mul(decimal.NewFromInt(qty))
		margin = proceeds.Mul(mr)
	}

	pos := p.Position(ticker)
	held := decimal.NewFromInt(pos.Short)
	pos.ShortCostBasis = pos.ShortCostBasis.Mul(held).Add(proceeds).Div(decimal.NewFromInt(pos.Short + qty))
	pos.Short += qty
	pos.ShortMarginUsed = pos.ShortMarginUsed.Add(margin)
	p.MarginUsed = p.MarginUsed.Add(margin)
	p.Cash = p.Cash.Add(proceeds).Sub(margin)
	return qty
}

func cover(p *portfolio.Portfolio, ticker string, qty int64, price decimal.Decimal) int64 {
	pos, ok := p.Positions[ticker]
	if !ok {
		return 0
	}
	if qty > pos.Short {
		qty = pos.Short
	}
	if qty <= 0 {
		return 0
	}
	if coverCost(pos, qty, price).GreaterThan(p.Cash) {
		qty = coverable(p.Cash, pos, qty, price)
		if qty <= 0 {
			return 0
		}
	}

	shares := decimal.NewFromInt(qty)
	g := p.Gains(ticker)
	g.Short = g.Short.Add(pos.ShortCostBasis.Sub(price).Mul(shares))

	release := released(pos, qty)
	pos.Short -= qty
	pos.ShortMarginUsed = pos.ShortMarginUsed.Sub(release)
	p.MarginUsed = p.MarginUsed.Sub(release)
	p.Cash = p.Cash.Add(release).Sub(price.Mul(shares))
	if pos.Short == 0 {
		pos.ShortCostBasis = decimal.Zero
		pos.ShortMarginUsed = decimal.Zero
	}
	return qty
}

// released is the share of posted margin freed by covering qty shares,
// computed as margin×qty/short so the division happens last.
func released(pos *portfolio.Position, qty int64) decimal.Decimal {
	if qty >= pos.Short {
		return pos.ShortMarginUsed
	}
	return pos.ShortMarginUsed.Mul(decimal.NewFromInt(qty)).Div(decimal.NewFromInt(pos.Short))
}

// coverCost is the net cash a cover consumes: buy-back cost less released margin.
func coverCost(pos *portfolio.Position, qty int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty)).Sub(released(pos, qty))
}

// coverable is the largest quantity up to qty whose net cover cost fits in
// cash. Only called when covering qty would overdraw, so price is above the
// margin posted per share.
func coverable(cash decimal.Decimal, pos *portfolio.Position, qty int64, price decimal.Decimal) int64 {
	perShare := price.Sub(pos.ShortMarginUsed.Div(decimal.NewFromInt(pos.Short)))
	n := affordable(cash, perShare)
	if n > qty {
		n = qty
	}
	for n > 0 && coverCost(pos, n, price).GreaterThan(cash) {
		n--
	}
	return n
}

// affordable is the largest whole quantity whose total does not exceed cash.
func affordable(cash, unit decimal.Decimal) int64 {
	if !unit.IsPositive() || !cash.IsPositive() {
		return 0
	}
	n := cash.Div(unit).Floor().IntPart()
	if n > maxShares {
		n = maxShares
	}
	// Div rounds to DivisionPrecision digits; step back if that rounded up.
	for n > 0 && unit.Mul(decimal.NewFromInt(n)).GreaterThan(cash) {
		n--
	}
	return n
}
