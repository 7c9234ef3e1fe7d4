package journal

import (
	"database/sql"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, date, ticker, action, requested, quantity, price, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Date, t.Ticker, t.Action,
		t.Requested, t.Quantity, t.Price, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLite) RecordDay(d DayRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO days
		(run_id, date, value, daily_return, cash, margin_used, long_exposure, short_exposure, trades, skipped, skip_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.Date, d.Value, d.DailyReturn, d.Cash, d.MarginUsed,
		d.LongExposure, d.ShortExposure, d.Trades, d.Skipped, d.SkipReason,
	)
	return err
}

// RecordRun inserts or replaces the summary of a run. An infinite
// long/short ratio is stored as -1 since SQLite has no infinity literal.
func (j *SQLite) RecordRun(r BacktestRun) error {
	ratio := r.LongShortRatio
	if math.IsInf(ratio, 1) {
		ratio = -1
	}
	var ddDate any
	if !r.MaxDDDate.IsZero() {
		ddDate = r.MaxDDDate
	}

	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO backtest_runs
		(run_id, created, strategy, tickers, dataset, config, start_date, end_date,
		 initial_capital, final_value, margin_requirement, risk_free_rate,
		 return_pct, annualized_return, volatility, sharpe, sortino, max_dd_pct, max_dd_date,
		 gross_exposure, net_exposure, long_short_ratio,
		 trading_days, skipped_days, trade_count, wins, losses, org_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, strings.Join(r.Tickers, ","), r.Dataset, r.Config, r.Start, r.End,
		r.InitialCapital, r.FinalValue, r.MarginRequirement, r.RiskFreeRate,
		r.ReturnPct, r.AnnualizedReturn, r.Volatility, r.Sharpe, r.Sortino, r.MaxDDPct, ddDate,
		r.GrossExposure, r.NetExposure, ratio,
		r.TradingDays, r.SkippedDays, r.Trades, r.Wins, r.Losses, r.OrgPath,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
