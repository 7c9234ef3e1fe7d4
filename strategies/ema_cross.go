package strategies

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// EMACross trades each ticker on fast/slow moving-average crossovers of
// daily closes. Averages are exponential unless Params.Average is "sma".
//   - A bull cross targets a long position, a bear cross a short one (or
//     flat when shorting is disabled).
//   - Only one decision per ticker per day, so a reversal closes the old
//     side first and opens the new side on the next day.
type EMACross struct {
	average    string
	fastPeriod int
	slowPeriod int
	allowShort bool
	sizer      *sizer
	hist       history

	state map[string]*crossState
}

type crossState struct {
	fast indicators.Indicator
	slow indicators.Indicator

	lastDiff     float64
	haveLastDiff bool

	target int // +1 long, -1 short, 0 flat
}

func NewEMACross(p Params) (*EMACross, error) {
	if p.FastPeriod == 0 {
		p.FastPeriod = 10
	}
	if p.SlowPeriod == 0 {
		p.SlowPeriod = 30
	}
	avg := strings.ToLower(strings.TrimSpace(p.Average))
	switch avg {
	case "":
		avg = "ema"
	case "ema", "sma":
	default:
		return nil, fmt.Errorf("ma-cross: unknown average %q (ema or sma)", p.Average)
	}
	if p.FastPeriod <= 0 || p.SlowPeriod <= 0 || p.FastPeriod >= p.SlowPeriod {
		return nil, fmt.Errorf("%s-cross: need 0 < fast < slow, got fast=%d slow=%d", avg, p.FastPeriod, p.SlowPeriod)
	}
	return &EMACross{
		average:    avg,
		fastPeriod: p.FastPeriod,
		slowPeriod: p.SlowPeriod,
		allowShort: p.AllowShort,
		sizer:      newSizer(p),
		hist:       history{},
		state:      make(map[string]*crossState),
	}, nil
}

func (s *EMACross) Name() string {
	return fmt.Sprintf("%s-cross(%d,%d)", s.average, s.fastPeriod, s.slowPeriod)
}

func (s *EMACross) Decide(_ context.Context, _ time.Time, snap portfolio.Snapshot, prices map[string]decimal.Decimal) (Decisions, error) {
	s.hist.add(prices)

	tickers := make([]string, 0, len(prices))
	for t := range prices {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	s.sizer.refresh(tickers, s.hist, snap)

	out := Decisions{}
	for _, t := range tickers {
		st := s.tickerState(t)
		px, _ := prices[t].Float64()
		reason := st.update(px, s.allowShort)

		if d, ok := s.step(t, st.target, reason, prices[t], snap); ok {
			out[t] = d
		}
	}
	return out, nil
}

func (s *EMACross) tickerState(t string) *crossState {
	st, ok := s.state[t]
	if !ok {
		st = &crossState{
			fast: s.indicator(s.fastPeriod),
			slow: s.indicator(s.slowPeriod),
		}
		s.state[t] = st
	}
	return st
}

func (s *EMACross) indicator(period int) indicators.Indicator {
	if s.average == "sma" {
		return indicators.NewMA(period)
	}
	return indicators.NewEMA(period)
}

// update feeds a close and moves the target on a cross. It returns the
// cross name, or "" when nothing crossed.
func (st *crossState) update(px float64, allowShort bool) string {
	st.fast.Update(px)
	st.slow.Update(px)
	if !st.fast.Ready() || !st.slow.Ready() {
		return ""
	}

	diff := st.fast.Value() - st.slow.Value()
	if !st.haveLastDiff {
		st.lastDiff = diff
		st.haveLastDiff = true
		return ""
	}

	bullCross := diff > 0 && st.lastDiff <= 0
	bearCross := diff < 0 && st.lastDiff >= 0
	st.lastDiff = diff

	switch {
	case bullCross:
		st.target = 1
		return "BullCross"
	case bearCross:
		st.target = 0
		if allowShort {
			st.target = -1
		}
		return "BearCross"
	}
	return ""
}

// step moves the position one decision closer to target.
func (s *EMACross) step(t string, target int, reason string, price decimal.Decimal, snap portfolio.Snapshot) (Decision, bool) {
	pos := snap.Position(t)
	if reason == "" {
		reason = "TargetPending"
	}

	switch {
	case target <= 0 && pos.Long > 0:
		return Decision{Action: sim.Sell, Quantity: float64(pos.Long), Reasoning: "ExitOn" + reason}, true
	case target >= 0 && pos.Short > 0:
		return Decision{Action: sim.Cover, Quantity: float64(pos.Short), Reasoning: "ExitOn" + reason}, true
	case target > 0 && pos.Long == 0:
		if q := s.sizer.shares(t, price, snap); q >= 1 {
			return Decision{Action: sim.Buy, Quantity: q, Reasoning: reason}, true
		}
	case target < 0 && pos.Short == 0:
		if q := s.sizer.shares(t, price, snap); q >= 1 {
			return Decision{Action: sim.Short, Quantity: q, Reasoning: reason}, true
		}
	}
	return Decision{}, false
}
