package backtest

import (
	"time"

	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// Sample is one point of the value series fed to the performance analyzer.
type Sample struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// Trade is a fill stamped with its ID and simulated date.
type Trade struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
	sim.Fill
	Reason string `json:"reason,omitempty"`
}

// LedgerRow is the record of one simulated day.
type LedgerRow struct {
	RunID         string                        `json:"run_id"`
	Date          time.Time                     `json:"date"`
	PreTradeValue decimal.Decimal               `json:"pre_trade_value"`
	Value         decimal.Decimal               `json:"value"`
	DailyReturn   float64                       `json:"daily_return"`
	Cash          decimal.Decimal               `json:"cash"`
	MarginUsed    decimal.Decimal               `json:"margin_used"`
	LongExposure  decimal.Decimal               `json:"long_exposure"`
	ShortExposure decimal.Decimal               `json:"short_exposure"`
	Prices        map[string]decimal.Decimal    `json:"prices"`
	Positions     map[string]portfolio.Position `json:"positions"`
	Trades        []Trade                       `json:"trades,omitempty"`
	DecisionError string                        `json:"decision_error,omitempty"`
}

// Result is everything a finished run produced.
type Result struct {
	RunID    string    `json:"run_id"`
	Strategy string    `json:"strategy"`
	Tickers  []string  `json:"tickers"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	MarginRequirement decimal.Decimal `json:"margin_requirement"`
	RiskFreeRate      float64         `json:"risk_free_rate"`

	Ledger  []LedgerRow `json:"ledger"`
	Samples []Sample    `json:"samples"`
	Returns []float64   `json:"returns"`
	Skipped int         `json:"skipped"`

	Final       portfolio.Snapshot         `json:"final"`
	FinalPrices map[string]decimal.Decimal `json:"final_prices"`
	Metrics     metrics.Summary            `json:"metrics"`
}

// Trades flattens the fills of every ledger row.
func (r *Result) Trades() []Trade {
	var out []Trade
	for _, row := range r.Ledger {
		out = append(out, row.Trades...)
	}
	return out
}

// MaxDrawdownDate is the date of the deepest trough, or the zero time when
// the value never fell below a prior peak.
func (r *Result) MaxDrawdownDate() time.Time {
	i := r.Metrics.MaxDrawdownIndex
	if i < 0 || i >= len(r.Samples) {
		return time.Time{}
	}
	return r.Samples[i].Date
}

// FinalValue is the last sampled value, or zero before any sample exists.
func (r *Result) FinalValue() decimal.Decimal {
	if len(r.Samples) == 0 {
		return decimal.Zero
	}
	return r.Samples[len(r.Samples)-1].Value
}

// Values converts the samples to the float series the metrics package uses.
func (r *Result) Values() []float64 {
	return sampleValues(r.Samples)
}

func sampleValues(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value.InexactFloat64()
	}
	return out
}

// tally counts closing fills by the sign of their realized P/L.
func tally(trades []Trade) (wins, losses int) {
	for _, t := range trades {
		if !t.Closing() {
			continue
		}
		switch t.RealizedPL.Sign() {
		case 1:
			wins++
		case -1:
			losses++
		}
	}
	return wins, losses
}
