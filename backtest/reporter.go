package backtest

import (
	"log/slog"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
)

// SkippedDay describes a calendar day the loop could not simulate.
type SkippedDay struct {
	RunID string
	Date  time.Time
	Err   error
	// Value is the most recent recorded portfolio value.
	Value decimal.Decimal
}

// Reporter receives progress from a running backtest. Calls are made from the
// run's goroutine, in calendar order.
type Reporter interface {
	DaySkipped(SkippedDay)
	DayRecorded(LedgerRow)
	RunFinished(*Result)
}

type NopReporter struct{}

func (NopReporter) DaySkipped(SkippedDay) {}
func (NopReporter) DayRecorded(LedgerRow) {}
func (NopReporter) RunFinished(*Result)   {}

// LogReporter writes one structured log line per day.
type LogReporter struct {
	Log *slog.Logger
}

func (r LogReporter) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r LogReporter) DaySkipped(d SkippedDay) {
	r.logger().Warn("DAY_SKIPPED",
		slog.String("run_id", d.RunID),
		slog.String("date", d.Date.Format(market.DateLayout)),
		slog.Any("error", d.Err),
	)
}

func (r LogReporter) DayRecorded(row LedgerRow) {
	attrs := []any{
		slog.String("run_id", row.RunID),
		slog.String("date", row.Date.Format(market.DateLayout)),
		slog.String("value", row.Value.StringFixed(2)),
		slog.Float64("daily_return", row.DailyReturn),
		slog.String("cash", row.Cash.StringFixed(2)),
		slog.Int("trades", len(row.Trades)),
	}
	if row.DecisionError != "" {
		attrs = append(attrs, slog.String("decision_error", row.DecisionError))
	}
	r.logger().Info("DAY_RECORDED", attrs...)
}

func (r LogReporter) RunFinished(res *Result) {
	m := res.Metrics
	r.logger().Info("RUN_FINISHED",
		slog.String("run_id", res.RunID),
		slog.String("strategy", res.Strategy),
		slog.Int("days", len(res.Ledger)),
		slog.Int("skipped", res.Skipped),
		slog.Float64("total_return", m.TotalReturn),
		slog.Float64("sharpe", m.SharpeRatio),
		slog.Float64("max_drawdown", m.MaxDrawdown),
	)
}

// MultiReporter fans every call out to each reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) DaySkipped(d SkippedDay) {
	for _, r := range m {
		r.DaySkipped(d)
	}
}

func (m MultiReporter) DayRecorded(row LedgerRow) {
	for _, r := range m {
		r.DayRecorded(row)
	}
}

func (m MultiReporter) RunFinished(res *Result) {
	for _, r := range m {
		r.RunFinished(res)
	}
}
