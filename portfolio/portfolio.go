package portfolio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMarginRequirement = errors.New("margin requirement must be between 0 and 1")
	ErrNegativeCash             = errors.New("cash must not be negative")
)

// Position holds both sides of a single ticker. Share counts are whole shares;
// every currency field is a decimal so repeated averaging does not drift.
type Position struct {
	Long            int64           `json:"long" yaml:"long"`
	Short           int64           `json:"short" yaml:"short"`
	LongCostBasis   decimal.Decimal `json:"long_cost_basis" yaml:"long_cost_basis"`
	ShortCostBasis  decimal.Decimal `json:"short_cost_basis" yaml:"short_cost_basis"`
	ShortMarginUsed decimal.Decimal `json:"short_margin_used" yaml:"short_margin_used"`
}

// Flat reports whether the position holds no shares on either side.
func (p Position) Flat() bool {
	return p.Long == 0 && p.Short == 0
}

// Net is long minus short shares.
func (p Position) Net() int64 {
	return p.Long - p.Short
}

// Gains is realized profit and loss, kept apart per side.
type Gains struct {
	Long  decimal.Decimal `json:"long" yaml:"long"`
	Short decimal.Decimal `json:"short" yaml:"short"`
}

func (g Gains) Total() decimal.Decimal {
	return g.Long.Add(g.Short)
}

// Portfolio is the accounting state of a single backtest run. Only the trade
// executor in package sim mutates it.
type Portfolio struct {
	Cash              decimal.Decimal
	MarginUsed        decimal.Decimal
	MarginRequirement decimal.Decimal

	Positions     map[string]*Position
	RealizedGains map[string]*Gains
}

// New creates a portfolio holding only cash, with an empty position and a zero
// realized-gains entry for every ticker given.
func New(cash, marginRequirement decimal.Decimal, tickers ...string) (*Portfolio, error) {
	if cash.IsNegative() {
		return nil, ErrNegativeCash
	}
	if marginRequirement.IsNegative() || marginRequirement.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidMarginRequirement, marginRequirement)
	}

	p := &Portfolio{
		Cash:              cash,
		MarginRequirement: marginRequirement,
		Positions:         make(map[string]*Position, len(tickers)),
		RealizedGains:     make(map[string]*Gains, len(tickers)),
	}
	for _, t := range tickers {
		p.Position(t)
		p.Gains(t)
	}
	return p, nil
}

// Position returns the position for ticker, creating an empty one if needed.
func (p *Portfolio) Position(ticker string) *Position {
	pos, ok := p.Positions[ticker]
	if !ok {
		pos = &Position{}
		p.Positions[ticker] = pos
	}
	return pos
}

// Gains returns the realized gains for ticker, creating a zero entry if needed.
func (p *Portfolio) Gains(ticker string) *Gains {
	g, ok := p.RealizedGains[ticker]
	if !ok {
		g = &Gains{}
		p.RealizedGains[ticker] = g
	}
	return g
}

// Tickers returns every ticker with a position entry, sorted.
func (p *Portfolio) Tickers() []string {
	out := make([]string, 0, len(p.Positions))
	for t := range p.Positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SumShortMargin adds up the margin posted against every short position.
func (p *Portfolio) SumShortMargin() decimal.Decimal {
	sum := decimal.Zero
	for _, pos := range p.Positions {
		sum = sum.Add(pos.ShortMarginUsed)
	}
	return sum
}

// TotalRealized is the realized P/L across all tickers and both sides.
func (p *Portfolio) TotalRealized() decimal.Decimal {
	sum := decimal.Zero
	for _, g := range p.RealizedGains {
		sum = sum.Add(g.Total())
	}
	return sum
}

// CheckInvariants returns an error describing the first broken accounting
// invariant, or nil.
func (p *Portfolio) CheckInvariants() error {
	if p.Cash.IsNegative() {
		return fmt.Errorf("cash is negative: %s", p.Cash)
	}
	if sum := p.SumShortMargin(); !p.MarginUsed.Equal(sum) {
		return fmt.Errorf("margin used %s does not match sum of short margin %s", p.MarginUsed, sum)
	}
	for _, t := range p.Tickers() {
		pos := p.Positions[t]
		switch {
		case pos.Long < 0:
			return fmt.Errorf("%s: negative long shares %d", t, pos.Long)
		case pos.Short < 0:
			return fmt.Errorf("%s: negative short shares %d", t, pos.Short)
		case pos.ShortMarginUsed.IsNegative():
			return fmt.Errorf("%s: negative short margin %s", t, pos.ShortMarginUsed)
		case pos.Long == 0 && !pos.LongCostBasis.IsZero():
			return fmt.Errorf("%s: long cost basis %s with no shares", t, pos.LongCostBasis)
		case pos.Short == 0 && !pos.ShortCostBasis.IsZero():
			return fmt.Errorf("%s: short cost basis %s with no shares", t, pos.ShortCostBasis)
		case pos.Short == 0 && !pos.ShortMarginUsed.IsZero():
			return fmt.Errorf("%s: short margin %s with no shares", t, pos.ShortMarginUsed)
		}
	}
	return nil
}

// Snapshot is a detached copy of a Portfolio. Decision sources receive
// snapshots so nothing outside the executor can change the live state.
type Snapshot struct {
	Cash              decimal.Decimal     `json:"cash"`
	MarginUsed        decimal.Decimal     `json:"margin_used"`
	MarginRequirement decimal.Decimal     `json:"margin_requirement"`
	Positions         map[string]Position `json:"positions"`
	RealizedGains     map[string]Gains    `json:"realized_gains"`
}

func (p *Portfolio) Snapshot() Snapshot {
	s := Snapshot{
		Cash:              p.Cash,
		MarginUsed:        p.MarginUsed,
		MarginRequirement: p.MarginRequirement,
		Positions:         make(map[string]Position, len(p.Positions)),
		RealizedGains:     make(map[string]Gains, len(p.RealizedGains)),
	}
	for t, pos := range p.Positions {
		s.Positions[t] = *pos
	}
	for t, g := range p.RealizedGains {
		s.RealizedGains[t] = *g
	}
	return s
}

// Position returns the snapshot's position for ticker (zero value if absent).
func (s Snapshot) Position(ticker string) Position {
	return s.Positions[ticker]
}
