package backtest

import (
	"log/slog"
	"time"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
)

// JournalReporter persists every day, trade and the final run summary.
// Write failures are logged; they never stop the simulation.
type JournalReporter struct {
	J       journal.Journal
	Log     *slog.Logger
	Dataset string
	Config  []byte
	OrgPath string
	Notes   []string

	// Now stamps the run record; defaults to time.Now.
	Now func() time.Time
}

func (r *JournalReporter) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r *JournalReporter) fail(what string, err error, attrs ...any) {
	if err == nil {
		return
	}
	r.logger().Error("JOURNAL_WRITE_FAILED", append([]any{slog.String("record", what), slog.Any("error", err)}, attrs...)...)
}

func (r *JournalReporter) DaySkipped(d SkippedDay) {
	reason := ""
	if d.Err != nil {
		reason = d.Err.Error()
	}
	err := r.J.RecordDay(journal.DayRecord{
		RunID:      d.RunID,
		Date:       d.Date,
		Value:      d.Value.InexactFloat64(),
		Skipped:    true,
		SkipReason: reason,
	})
	r.fail("day", err, slog.String("date", d.Date.Format(market.DateLayout)))
}

func (r *JournalReporter) DayRecorded(row LedgerRow) {
	for _, t := range row.Trades {
		err := r.J.RecordTrade(journal.TradeRecord{
			TradeID:    t.ID,
			RunID:      row.RunID,
			Date:       t.Date,
			Ticker:     t.Ticker,
			Action:     string(t.Action),
			Requested:  t.Requested,
			Quantity:   t.Quantity,
			Price:      t.Price.InexactFloat64(),
			RealizedPL: t.RealizedPL.InexactFloat64(),
			Reason:     t.Reason,
		})
		r.fail("trade", err, slog.String("trade_id", t.ID))
	}

	err := r.J.RecordDay(journal.DayRecord{
		RunID:         row.RunID,
		Date:          row.Date,
		Value:         row.Value.InexactFloat64(),
		DailyReturn:   row.DailyReturn,
		Cash:          row.Cash.InexactFloat64(),
		MarginUsed:    row.MarginUsed.InexactFloat64(),
		LongExposure:  row.LongExposure.InexactFloat64(),
		ShortExposure: row.ShortExposure.InexactFloat64(),
		Trades:        len(row.Trades),
		SkipReason:    row.DecisionError,
	})
	r.fail("day", err, slog.String("date", row.Date.Format(market.DateLayout)))
}

func (r *JournalReporter) RunFinished(res *Result) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	run := Record(res, now())
	run.Dataset = r.Dataset
	run.Config = r.Config
	run.OrgPath = r.OrgPath
	run.Notes = r.Notes

	r.fail("run", r.J.RecordRun(run), slog.String("run_id", run.RunID))
	if r.OrgPath != "" {
		r.fail("org", run.WriteBacktestOrg(), slog.String("path", r.OrgPath))
	}
}
