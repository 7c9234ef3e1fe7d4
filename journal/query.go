package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const tradeColumns = `trade_id, run_id, date, ticker, action, requested, quantity, price, realized_pl, reason`

func scanTrade(s interface{ Scan(...any) error }) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.RunID,
		&rec.Date,
		&rec.Ticker,
		&rec.Action,
		&rec.Requested,
		&rec.Quantity,
		&rec.Price,
		&rec.RealizedPL,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesByRunID returns a run's trades in execution order.
func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE run_id = ? ORDER BY date ASC, trade_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTradesBetween returns trades dated within [start, end) across runs.
func (j *SQLite) ListTradesBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE date >= ? AND date < ? ORDER BY date ASC, trade_id ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListDaysByRunID returns a run's day rows in date order.
func (j *SQLite) ListDaysByRunID(ctx context.Context, runID string) ([]DayRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, date, value, daily_return, cash, margin_used, long_exposure, short_exposure, trades, skipped, skip_reason
		FROM days WHERE run_id = ? ORDER BY date ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayRecord
	for rows.Next() {
		var d DayRecord
		if err := rows.Scan(
			&d.RunID, &d.Date, &d.Value, &d.DailyReturn, &d.Cash, &d.MarginUsed,
			&d.LongExposure, &d.ShortExposure, &d.Trades, &d.Skipped, &d.SkipReason,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const runColumns = `run_id, created, strategy, tickers, dataset, config, start_date, end_date,
	initial_capital, final_value, margin_requirement, risk_free_rate,
	return_pct, annualized_return, volatility, sharpe, sortino, max_dd_pct, max_dd_date,
	gross_exposure, net_exposure, long_short_ratio,
	trading_days, skipped_days, trade_count, wins, losses, org_path`

func scanRun(s interface{ Scan(...any) error }) (BacktestRun, error) {
	var (
		r       BacktestRun
		tickers string
		ddDate  sql.NullTime
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Strategy, &tickers, &r.Dataset, &r.Config, &r.Start, &r.End,
		&r.InitialCapital, &r.FinalValue, &r.MarginRequirement, &r.RiskFreeRate,
		&r.ReturnPct, &r.AnnualizedReturn, &r.Volatility, &r.Sharpe, &r.Sortino, &r.MaxDDPct, &ddDate,
		&r.GrossExposure, &r.NetExposure, &r.LongShortRatio,
		&r.TradingDays, &r.SkippedDays, &r.Trades, &r.Wins, &r.Losses, &r.OrgPath,
	)
	if err != nil {
		return r, err
	}
	if tickers != "" {
		r.Tickers = strings.Split(tickers, ",")
	}
	if ddDate.Valid {
		r.MaxDDDate = ddDate.Time
	}
	r.NetPL = r.FinalValue - r.InitialCapital
	r.WinRate = winRate(r.Wins, r.Losses)
	return r, nil
}

// GetBacktestRun loads a run summary. A stored long/short ratio of -1 reads
// back as -1; callers treat it as unbounded.
func (j *SQLite) GetBacktestRun(ctx context.Context, runID string) (BacktestRun, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("run %q not found", runID)
		}
		return BacktestRun{}, err
	}
	return r, nil
}

// ListBacktestRuns returns run summaries, newest first.
func (j *SQLite) ListBacktestRuns(ctx context.Context, limit int) ([]BacktestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `SELECT `+runColumns+` FROM backtest_runs
		ORDER BY created DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportBacktestOrg loads a run and its trades and renders the Org report.
func (j *SQLite) ExportBacktestOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.GetBacktestRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	report, err := r.RenderOrg()
	if err != nil {
		return "", err
	}
	if len(trades) == 0 {
		return report, nil
	}
	return report + "\n** Trades\n" + FormatTradesOrg(trades) + "\n", nil
}
