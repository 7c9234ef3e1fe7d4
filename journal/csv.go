package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVJournal writes trades, days and run summaries to three CSV files. The
// runs path may be empty to skip run summaries.
type CSVJournal struct {
	trades *csv.Writer
	days   *csv.Writer
	runs   *csv.Writer
	files  []*os.File
}

var (
	tradeHeader = []string{"trade_id", "run_id", "date", "ticker", "action", "requested", "quantity", "price", "realized_pl", "reason"}
	dayHeader   = []string{"run_id", "date", "value", "daily_return", "cash", "margin_used", "long_exposure", "short_exposure", "trades", "skipped", "skip_reason"}
	runHeader   = []string{"run_id", "strategy", "tickers", "start", "end", "initial_capital", "final_value", "return_pct", "annualized_return", "volatility", "sharpe", "sortino", "max_dd_pct", "trades", "wins", "losses"}
)

func NewCSV(tradesPath, daysPath, runsPath string) (*CSVJournal, error) {
	j := &CSVJournal{}
	open := func(path string, header []string) (*csv.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open(tradesPath, tradeHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	if j.days, err = open(daysPath, dayHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	if runsPath != "" {
		if j.runs, err = open(runsPath, runHeader); err != nil {
			_ = j.closeFiles()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.TradeID,
		t.RunID,
		t.Date.Format(time.RFC3339),
		t.Ticker,
		t.Action,
		f(t.Requested),
		strconv.FormatInt(t.Quantity, 10),
		f(t.Price),
		f(t.RealizedPL),
		t.Reason,
	})
}

func (j *CSVJournal) RecordDay(d DayRecord) error {
	return write(j.days, []string{
		d.RunID,
		d.Date.Format("2006-01-02"),
		f(d.Value),
		f(d.DailyReturn),
		f(d.Cash),
		f(d.MarginUsed),
		f(d.LongExposure),
		f(d.ShortExposure),
		strconv.Itoa(d.Trades),
		strconv.FormatBool(d.Skipped),
		d.SkipReason,
	})
}

func (j *CSVJournal) RecordRun(r BacktestRun) error {
	if j.runs == nil {
		return nil
	}
	return write(j.runs, []string{
		r.RunID,
		r.Strategy,
		strings.Join(r.Tickers, " "),
		r.Start.Format("2006-01-02"),
		r.End.Format("2006-01-02"),
		f(r.InitialCapital),
		f(r.FinalValue),
		f(r.ReturnPct),
		f(r.AnnualizedReturn),
		f(r.Volatility),
		f(r.Sharpe),
		f(r.Sortino),
		f(r.MaxDDPct),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
	})
}

func (j *CSVJournal) Close() error {
	var errs []error
	for _, w := range []*csv.Writer{j.trades, j.days, j.runs} {
		if w == nil {
			continue
		}
		w.Flush()
		errs = append(errs, w.Error())
	}
	errs = append(errs, j.closeFiles())
	return errors.Join(errs...)
}

func (j *CSVJournal) closeFiles() error {
	var errs []error
	for _, f := range j.files {
		errs = append(errs, f.Close())
	}
	j.files = nil
	return errors.Join(errs...)
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
