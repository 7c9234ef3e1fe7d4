// Package metrics computes performance statistics for a finished backtest.
// Everything here is a pure function of its inputs.
package metrics

import (
	"encoding/json"
	"math"
	"time"
)

const (
	// TradingDaysPerYear scales daily volatility to an annual figure.
	TradingDaysPerYear = 252

	// DefaultRiskFreeRate is used when a run does not set one.
	DefaultRiskFreeRate = 0.02
)

// DailyReturns returns r[i] = (v[i+1]-v[i])/v[i] for consecutive values.
// A step from a zero value yields a zero return.
func DailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			out[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}
	return out
}

// AnnualizedReturn is (final/initial)^(365/days) - 1, or 0 when days or the
// initial value is not positive.
func AnnualizedReturn(initial, final float64, days float64) float64 {
	if days <= 0 || initial <= 0 {
		return 0
	}
	ratio := final / initial
	if ratio <= 0 {
		return -1
	}
	return math.Pow(ratio, 365/days) - 1
}

// AnnualizedVolatility is the population standard deviation of returns
// scaled by sqrt(252).
func AnnualizedVolatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio is 0 when vol is 0.
func SharpeRatio(annualizedReturn, riskFree, vol float64) float64 {
	if vol == 0 {
		return 0
	}
	return (annualizedReturn - riskFree) / vol
}

// DownsideDeviation is sqrt(mean(r^2 for r < 0) * 252). Positive and zero
// returns do not enter the mean at all.
func DownsideDeviation(returns []float64) float64 {
	var sum float64
	var n int
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n) * TradingDaysPerYear)
}

// SortinoRatio is 0 when there are no negative returns.
func SortinoRatio(annualizedReturn, riskFree float64, returns []float64) float64 {
	dd := DownsideDeviation(returns)
	if dd == 0 {
		return 0
	}
	return (annualizedReturn - riskFree) / dd
}

// MaxDrawdown scans values with a running peak and returns the largest
// (peak-value)/peak seen along with the index of that trough. It returns
// (0, -1) for a non-decreasing series.
func MaxDrawdown(values []float64) (float64, int) {
	maxDD, at := 0.0, -1
	peak := math.Inf(-1)
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD, at = dd, i
		}
	}
	return maxDD, at
}

// Exposure describes end-of-run market exposure relative to portfolio value.
type Exposure struct {
	Gross          float64 `json:"gross"`
	Net            float64 `json:"net"`
	LongShortRatio float64 `json:"long_short_ratio"`
}

// Exposures computes gross and net exposure as fractions of finalValue.
// LongShortRatio is +Inf when there is long but no short exposure and 0 when
// both are zero. A zero finalValue yields zero gross and net exposure.
func Exposures(long, short, finalValue float64) Exposure {
	var e Exposure
	if finalValue != 0 {
		e.Gross = (long + short) / finalValue
		e.Net = (long - short) / finalValue
	}
	switch {
	case short != 0:
		e.LongShortRatio = long / short
	case long > 0:
		e.LongShortRatio = math.Inf(1)
	}
	return e
}

// MarshalJSON writes an infinite LongShortRatio as null.
func (e Exposure) MarshalJSON() ([]byte, error) {
	type wire struct {
		Gross          float64  `json:"gross"`
		Net            float64  `json:"net"`
		LongShortRatio *float64 `json:"long_short_ratio"`
	}
	w := wire{Gross: e.Gross, Net: e.Net}
	if !math.IsInf(e.LongShortRatio, 0) && !math.IsNaN(e.LongShortRatio) {
		w.LongShortRatio = &e.LongShortRatio
	}
	return json.Marshal(w)
}

// Input is everything Compute needs. Values[0] must be the initial capital.
type Input struct {
	Values        []float64
	Start         time.Time
	End           time.Time
	RiskFreeRate  float64
	LongExposure  float64
	ShortExposure float64
	Trades        int
	Wins          int
	Losses        int
}

// Summary is the full set of run statistics.
type Summary struct {
	InitialValue         float64  `json:"initial_value"`
	FinalValue           float64  `json:"final_value"`
	TotalReturn          float64  `json:"total_return"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	SharpeRatio          float64  `json:"sharpe_ratio"`
	SortinoRatio         float64  `json:"sortino_ratio"`
	DownsideDeviation    float64  `json:"downside_deviation"`
	MaxDrawdown          float64  `json:"max_drawdown"`
	MaxDrawdownIndex     int      `json:"max_drawdown_index"`
	Exposure             Exposure `json:"exposure"`
	TradingDays          int      `json:"trading_days"`
	Trades               int      `json:"trades"`
	Wins                 int      `json:"wins"`
	Losses               int      `json:"losses"`
}

// WinRate is wins over closing trades, in percent.
func (s Summary) WinRate() float64 {
	n := s.Wins + s.Losses
	if n == 0 {
		return 0
	}
	return 100 * float64(s.Wins) / float64(n)
}

// Compute derives every statistic from in.
func Compute(in Input) Summary {
	s := Summary{
		MaxDrawdownIndex: -1,
		Trades:           in.Trades,
		Wins:             in.Wins,
		Losses:           in.Losses,
	}
	if len(in.Values) == 0 {
		return s
	}

	s.InitialValue = in.Values[0]
	s.FinalValue = in.Values[len(in.Values)-1]
	s.TradingDays = len(in.Values) - 1
	if s.InitialValue != 0 {
		s.TotalReturn = s.FinalValue/s.InitialValue - 1
	}

	returns := DailyReturns(in.Values)
	days := in.End.Sub(in.Start).Hours() / 24
	s.AnnualizedReturn = AnnualizedReturn(s.InitialValue, s.FinalValue, days)
	s.AnnualizedVolatility = AnnualizedVolatility(returns)
	s.SharpeRatio = SharpeRatio(s.AnnualizedReturn, in.RiskFreeRate, s.AnnualizedVolatility)
	s.DownsideDeviation = DownsideDeviation(returns)
	s.SortinoRatio = SortinoRatio(s.AnnualizedReturn, in.RiskFreeRate, returns)
	s.MaxDrawdown, s.MaxDrawdownIndex = MaxDrawdown(in.Values)
	s.Exposure = Exposures(in.LongExposure, in.ShortExposure, s.FinalValue)
	return s
}
