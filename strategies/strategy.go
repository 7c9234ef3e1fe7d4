// Package strategies holds the decision sources a backtest can be driven by.
package strategies

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// ErrUnparseableDecision is returned when a source produced output that
// could not be read as decisions. The runner skips trading for the day.
var ErrUnparseableDecision = errors.New("unparseable decision")

// Decision is what to do with one ticker today.
type Decision struct {
	Action     sim.Action `json:"action" yaml:"action"`
	Quantity   float64    `json:"quantity" yaml:"quantity"`
	Confidence float64    `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Reasoning  string     `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// Decisions maps ticker to decision. Tickers without an entry hold.
type Decisions map[string]Decision

// Tickers returns the tickers with a decision, sorted.
func (d Decisions) Tickers() []string {
	out := make([]string, 0, len(d))
	for t := range d {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DecisionSource decides the day's trades from a detached portfolio
// snapshot and the day's closes. It must not keep references to either.
type DecisionSource interface {
	Name() string
	Decide(ctx context.Context, date time.Time, snap portfolio.Snapshot, prices map[string]decimal.Decimal) (Decisions, error)
}

// DecideFunc adapts a function to DecisionSource.
type DecideFunc func(ctx context.Context, date time.Time, snap portfolio.Snapshot, prices map[string]decimal.Decimal) (Decisions, error)

func (f DecideFunc) Name() string { return "func" }

func (f DecideFunc) Decide(ctx context.Context, date time.Time, snap portfolio.Snapshot, prices map[string]decimal.Decimal) (Decisions, error) {
	return f(ctx, date, snap, prices)
}

// Params configures the built-in sources. Zero values pick defaults.
// Sources built from it keep per-run state such as price history, so every
// backtest needs its own source.
type Params struct {
	Tickers    []string
	FastPeriod int
	SlowPeriod int
	// Average selects the crossover average: "ema" (default) or "sma".
	Average string

	// Quantity fixes the order size. When zero, orders are sized by the
	// risk policy if UseRiskLimits is set, or by splitting cash evenly.
	Quantity      float64
	UseRiskLimits bool
	Policy        risk.Policy
	AllowShort    bool

	ScriptPath string

	URL     string
	Timeout time.Duration
}

// New builds a decision source by name. Call it once per backtest run:
// the returned source is stateful and must not be shared between runners.
func New(name string, p Params) (DecisionSource, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hold", "noop", "none":
		return Hold{}, nil

	case "buy-and-hold", "buyandhold":
		return NewBuyAndHold(p), nil

	case "ema-cross", "emacross":
		return NewEMACross(p)

	case "sma-cross", "smacross":
		p.Average = "sma"
		return NewEMACross(p)

	case "scripted", "script":
		return LoadScript(p.ScriptPath)

	case "http":
		return NewHTTPSource(p.URL, p.Timeout)

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: hold, buy-and-hold, ema-cross, sma-cross, scripted, http)", name)
	}
}

// Hold never trades.
type Hold struct{}

func (Hold) Name() string { return "hold" }

func (Hold) Decide(context.Context, time.Time, portfolio.Snapshot, map[string]decimal.Decimal) (Decisions, error) {
	return Decisions{}, nil
}
