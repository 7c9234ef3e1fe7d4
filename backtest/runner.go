// Package backtest drives a portfolio through a business-day calendar,
// asking a decision source what to trade and recording the outcome.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
)

// Option configures a Runner.
type Option func(*Runner)

func WithReporter(r Reporter) Option {
	return func(rn *Runner) { rn.reporter = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) { rn.log = l }
}

// WithFailFast makes a decision error end the run instead of skipping the
// day's trades.
func WithFailFast(on bool) Option {
	return func(rn *Runner) { rn.failFast = on }
}

// WithDecisionTimeout bounds every Decide call. Zero means no deadline.
func WithDecisionTimeout(d time.Duration) Option {
	return func(rn *Runner) { rn.decisionTimeout = d }
}

func WithRiskFreeRate(rate float64) Option {
	return func(rn *Runner) { rn.cfg.RiskFreeRate = rate }
}

func WithRunID(runID string) Option {
	return func(rn *Runner) { rn.runID = runID }
}

// Runner owns one portfolio and simulates it day by day.
type Runner struct {
	cfg     Config
	prices  market.PriceProvider
	decider strategies.DecisionSource

	reporter        Reporter
	log             *slog.Logger
	failFast        bool
	decisionTimeout time.Duration
	runID           string

	mu  sync.Mutex
	p   *portfolio.Portfolio
	ran bool
}

// ErrAlreadyRun is returned by Run on a Runner that has already run.
var ErrAlreadyRun = errors.New("runner already used")

func NewRunner(cfg Config, prices market.PriceProvider, decider strategies.DecisionSource, opts ...Option) (*Runner, error) {
	if prices == nil {
		return nil, fmt.Errorf("%w: price provider is required", ErrInvalidConfig)
	}
	if decider == nil {
		return nil, fmt.Errorf("%w: decision source is required", ErrInvalidConfig)
	}
	cfg.Tickers = append([]string(nil), cfg.Tickers...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg,
		prices:   prices,
		decider:  decider,
		reporter: NopReporter{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = id.New()
	}
	if r.reporter == nil {
		r.reporter = NopReporter{}
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	p, err := portfolio.New(cfg.InitialCapital, cfg.MarginRequirement, cfg.Tickers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	r.p = p
	return r, nil
}

func (r *Runner) RunID() string  { return r.runID }
func (r *Runner) Config() Config { return r.cfg }

// Snapshot returns a copy of the current portfolio. It is safe to call while
// Run is in progress.
func (r *Runner) Snapshot() portfolio.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.p.Snapshot()
}

// dayState carries the loop's running values between days.
type dayState struct {
	samples    []Sample
	returns    []float64
	ledger     []LedgerRow
	skipped    int
	lastPrices map[string]decimal.Decimal
}

// Run simulates every business day from the configured start to end.
// A Runner is single-use; a second call returns ErrAlreadyRun.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRun, r.runID)
	}
	r.ran = true
	r.mu.Unlock()

	log := r.log.With(slog.String("run_id", r.runID))
	log.Info("RUN_START",
		slog.String("strategy", r.decider.Name()),
		slog.Any("tickers", r.cfg.Tickers),
		slog.String("start", r.cfg.Start.Format(market.DateLayout)),
		slog.String("end", r.cfg.End.Format(market.DateLayout)),
		slog.String("initial_capital", r.cfg.InitialCapital.String()),
	)

	if pf, ok := r.prices.(market.Prefetcher); ok {
		if err := pf.Prefetch(ctx, r.cfg.Tickers, r.cfg.Start, r.cfg.End); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("PREFETCH_FAILED", slog.Any("error", err))
		}
	}

	st := &dayState{
		samples: []Sample{{Date: r.cfg.Start, Value: r.cfg.InitialCapital}},
	}

	for _, date := range BusinessDays(r.cfg.Start, r.cfg.End) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.step(ctx, log, date, st); err != nil {
			return nil, err
		}
	}

	res := r.finish(st)
	log.Info("RUN_DONE",
		slog.Int("days", len(res.Ledger)),
		slog.Int("skipped", res.Skipped),
		slog.String("final_value", res.FinalValue().StringFixed(2)),
	)
	r.reporter.RunFinished(res)
	return res, nil
}

// step simulates one day. It only returns an error when the run must stop.
func (r *Runner) step(ctx context.Context, log *slog.Logger, date time.Time, st *dayState) error {
	prev := st.samples[len(st.samples)-1].Value

	prices, err := market.Closes(ctx, r.prices, r.cfg.Tickers, date)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		st.skipped++
		r.reporter.DaySkipped(SkippedDay{RunID: r.runID, Date: date, Err: err, Value: prev})
		return nil
	}

	r.mu.Lock()
	pre := portfolio.Value(r.p, prices)
	snap := r.p.Snapshot()
	r.mu.Unlock()

	ret := 0.0
	if !prev.IsZero() {
		ret = pre.Sub(prev).Div(prev).InexactFloat64()
	}
	st.samples = append(st.samples, Sample{Date: date, Value: pre})
	st.returns = append(st.returns, ret)
	st.lastPrices = prices

	row := LedgerRow{
		RunID:         r.runID,
		Date:          date,
		PreTradeValue: pre,
		DailyReturn:   ret,
		Prices:        prices,
	}

	decisions, err := r.decide(ctx, date, snap, prices)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.failFast {
			return fmt.Errorf("decide %s: %w", date.Format(market.DateLayout), err)
		}
		log.Warn("DECISION_FAILED", slog.String("date", date.Format(market.DateLayout)), slog.Any("error", err))
		row.DecisionError = err.Error()
		decisions = nil
	}

	r.mu.Lock()
	row.Trades = r.execute(log, date, decisions, prices)
	row.Value = portfolio.Value(r.p, prices)
	row.Cash = r.p.Cash
	row.MarginUsed = r.p.MarginUsed
	row.LongExposure, row.ShortExposure = portfolio.Exposure(r.p, prices)
	row.Positions = held(r.p)
	r.mu.Unlock()

	st.ledger = append(st.ledger, row)
	r.reporter.DayRecorded(row)
	return nil
}

func (r *Runner) decide(ctx context.Context, date time.Time, snap portfolio.Snapshot, prices map[string]decimal.Decimal) (strategies.Decisions, error) {
	if r.decisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.decisionTimeout)
		defer cancel()
	}
	return r.decider.Decide(ctx, date, snap, prices)
}

// execute applies decisions in ticker order. Callers hold r.mu.
func (r *Runner) execute(log *slog.Logger, date time.Time, decisions strategies.Decisions, prices map[string]decimal.Decimal) []Trade {
	var trades []Trade
	for _, ticker := range decisions.Tickers() {
		d := decisions[ticker]
		if d.Action == sim.Hold {
			continue
		}
		price, ok := prices[ticker]
		if !ok {
			log.Warn("DECISION_UNKNOWN_TICKER", slog.String("ticker", ticker), slog.String("action", string(d.Action)))
			continue
		}
		if err := sim.Validate(d.Action, d.Quantity, price); err != nil {
			log.Warn("ORDER_REJECTED", slog.String("ticker", ticker), slog.Any("error", err))
			continue
		}

		fill := sim.Execute(r.p, sim.Order{Ticker: ticker, Action: d.Action, Quantity: d.Quantity, Price: price})
		if !fill.Filled() {
			log.Debug("ORDER_NOT_FILLED", slog.String("ticker", ticker), slog.String("action", string(d.Action)), slog.Float64("requested", d.Quantity))
			continue
		}
		if fill.Clipped() {
			log.Debug("ORDER_CLIPPED", slog.String("ticker", ticker), slog.Int64("filled", fill.Quantity), slog.Float64("requested", d.Quantity))
		}
		trades = append(trades, Trade{ID: id.At(date), Date: date, Fill: fill, Reason: d.Reasoning})
	}
	return trades
}

func held(p *portfolio.Portfolio) map[string]portfolio.Position {
	out := make(map[string]portfolio.Position)
	for t, pos := range p.Positions {
		if !pos.Flat() {
			out[t] = *pos
		}
	}
	return out
}

func (r *Runner) finish(st *dayState) *Result {
	r.mu.Lock()
	final := r.p.Snapshot()
	var long, short decimal.Decimal
	if st.lastPrices != nil {
		long, short = portfolio.Exposure(r.p, st.lastPrices)
	}
	r.mu.Unlock()

	res := &Result{
		RunID:             r.runID,
		Strategy:          r.decider.Name(),
		Tickers:           r.cfg.Tickers,
		Start:             r.cfg.Start,
		End:               r.cfg.End,
		MarginRequirement: r.cfg.MarginRequirement,
		RiskFreeRate:      r.cfg.RiskFreeRate,
		Ledger:            st.ledger,
		Samples:           st.samples,
		Returns:           st.returns,
		Skipped:           st.skipped,
		Final:             final,
		FinalPrices:       st.lastPrices,
	}

	wins, losses := tally(res.Trades())
	res.Metrics = metrics.Compute(metrics.Input{
		Values:        sampleValues(st.samples),
		Start:         r.cfg.Start,
		End:           st.samples[len(st.samples)-1].Date,
		RiskFreeRate:  r.cfg.RiskFreeRate,
		LongExposure:  long.InexactFloat64(),
		ShortExposure: short.InexactFloat64(),
		Trades:        len(res.Trades()),
		Wins:          wins,
		Losses:        losses,
	})
	return res
}

// IsMissingPrice reports whether a skipped day was caused by a missing close.
func IsMissingPrice(d SkippedDay) bool {
	return errors.Is(d.Err, market.ErrMissingPrice)
}
