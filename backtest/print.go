package backtest

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
)

// PrintResult writes a human-readable summary of res.
func PrintResult(w io.Writer, res *Result) {
	m := res.Metrics

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", res.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", res.Strategy)
	fmt.Fprintf(w, "Tickers:       %v\n", res.Tickers)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", res.Start.Format(market.DateLayout))
	fmt.Fprintf(w, "End:           %s\n", res.End.Format(market.DateLayout))
	fmt.Fprintf(w, "Days:          %d recorded, %d skipped\n", len(res.Ledger), res.Skipped)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", m.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", m.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", m.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate())
	fmt.Fprintf(w, "Turnover:      %s\n", turnover(res.Trades()).StringFixed(2))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Portfolio Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Value:   %.2f\n", m.InitialValue)
	fmt.Fprintf(w, "End Value:     %.2f\n", m.FinalValue)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", m.FinalValue-m.InitialValue)
	fmt.Fprintf(w, "Return:        %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(w, "Annualized:    %.2f%%\n", m.AnnualizedReturn*100)
	fmt.Fprintf(w, "Volatility:    %.2f%%\n", m.AnnualizedVolatility*100)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Sortino:       %.2f\n", m.SortinoRatio)
	if m.MaxDrawdown > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%% (%s)\n", m.MaxDrawdown*100, res.MaxDrawdownDate().Format(market.DateLayout))
	} else {
		fmt.Fprintf(w, "Max Drawdown:  0.00%%\n")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exposure")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Gross:         %.2f\n", m.Exposure.Gross)
	fmt.Fprintf(w, "Net:           %.2f\n", m.Exposure.Net)
	if math.IsInf(m.Exposure.LongShortRatio, 1) {
		fmt.Fprintf(w, "Long/Short:    inf\n")
	} else {
		fmt.Fprintf(w, "Long/Short:    %.2f\n", m.Exposure.LongShortRatio)
	}

	if len(res.Final.Positions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Final Positions")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, t := range res.Tickers {
			pos := res.Final.Position(t)
			g := res.Final.RealizedGains[t]
			if pos.Flat() && g.Total().IsZero() {
				continue
			}
			fmt.Fprintf(w, "%-10s long %d @ %s  short %d @ %s  realized %s\n",
				t, pos.Long, pos.LongCostBasis.StringFixed(2),
				pos.Short, pos.ShortCostBasis.StringFixed(2), g.Total().StringFixed(2))
		}
	}

	fmt.Fprintln(w)
}

// turnover is the summed notional of trades.
func turnover(trades []Trade) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.Notional())
	}
	return sum
}

// Record converts res to the journal's run summary.
func Record(res *Result, created time.Time) journal.BacktestRun {
	m := res.Metrics
	r := journal.BacktestRun{
		RunID:             res.RunID,
		Created:           created,
		Strategy:          res.Strategy,
		Tickers:           res.Tickers,
		Start:             res.Start,
		End:               res.End,
		InitialCapital:    m.InitialValue,
		FinalValue:        m.FinalValue,
		MarginRequirement: res.MarginRequirement.InexactFloat64(),
		RiskFreeRate:      res.RiskFreeRate,
		ReturnPct:         m.TotalReturn * 100,
		AnnualizedReturn:  m.AnnualizedReturn,
		Volatility:        m.AnnualizedVolatility,
		Sharpe:            m.SharpeRatio,
		Sortino:           m.SortinoRatio,
		MaxDDPct:          m.MaxDrawdown * 100,
		MaxDDDate:         res.MaxDrawdownDate(),
		GrossExposure:     m.Exposure.Gross,
		NetExposure:       m.Exposure.Net,
		LongShortRatio:    m.Exposure.LongShortRatio,
		TradingDays:       len(res.Ledger),
		SkippedDays:       res.Skipped,
		Trades:            m.Trades,
		Wins:              m.Wins,
		Losses:            m.Losses,
	}
	r.Finalize()
	return r
}
