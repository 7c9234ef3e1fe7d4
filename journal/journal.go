// Package journal persists backtest runs: every executed trade, every
// simulated day and the final run summary.
package journal

import "time"

// TradeRecord is one executed trade.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Date       time.Time
	Ticker     string
	Action     string
	Requested  float64
	Quantity   int64
	Price      float64
	RealizedPL float64
	Reason     string
}

// DayRecord is one simulated business day. Skipped days carry the reason
// and the last known value.
type DayRecord struct {
	RunID         string
	Date          time.Time
	Value         float64
	DailyReturn   float64
	Cash          float64
	MarginUsed    float64
	LongExposure  float64
	ShortExposure float64
	Trades        int
	Skipped       bool
	SkipReason    string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordDay(DayRecord) error
	RecordRun(BacktestRun) error
	Close() error
}

var (
	_ Journal = (*SQLite)(nil)
	_ Journal = (*CSVJournal)(nil)
)
