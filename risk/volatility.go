package risk

import (
	"math"

	"github.com/rustyeddy/backtester/indicators"
)

// VolatilityMetrics summarizes recent return volatility of one ticker.
type VolatilityMetrics struct {
	Daily      float64 `json:"daily_volatility"`
	Annualized float64 `json:"annualized_volatility"`
	Percentile float64 `json:"volatility_percentile"`
	DataPoints int     `json:"data_points"`
}

// Returns converts closes to simple daily returns. Steps from a zero close
// are dropped.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

// Volatility computes the sample standard deviation of the most recent
// LookbackDays returns, its annualized form, and where it ranks among the
// rolling PercentileWindow volatilities of the full history.
func (p Policy) Volatility(closes []float64) VolatilityMetrics {
	returns := Returns(closes)
	if len(returns) < 2 {
		return VolatilityMetrics{
			Daily:      p.FallbackDailyVol,
			Annualized: p.FallbackDailyVol * math.Sqrt(p.AnnualizationDays),
			Percentile: 100,
			DataPoints: len(returns),
		}
	}

	recent := returns
	if p.LookbackDays > 0 && len(recent) > p.LookbackDays {
		recent = recent[len(recent)-p.LookbackDays:]
	}
	daily, err := indicators.StdDev(recent, len(recent))
	if err != nil || math.IsNaN(daily) {
		daily = p.FallbackDailyVol
	}

	return VolatilityMetrics{
		Daily:      daily,
		Annualized: daily * math.Sqrt(p.AnnualizationDays),
		Percentile: p.percentile(closes, daily),
		DataPoints: len(recent),
	}
}

// percentile is the share of rolling-window volatilities at or below daily,
// in percent. It is 50 when the history is shorter than one window.
func (p Policy) percentile(closes []float64, daily float64) float64 {
	w := p.PercentileWindow
	if w < 2 {
		return 50
	}
	vol := indicators.NewReturnVol(w)
	below, total := 0, 0
	for _, c := range closes {
		vol.Update(c)
		if !vol.Ready() {
			continue
		}
		total++
		if vol.Value() <= daily {
			below++
		}
	}
	if total == 0 {
		return 50
	}
	return 100 * float64(below) / float64(total)
}

// VolatilityAdjustedLimit maps annualized volatility to the fraction of
// portfolio value a position may take.
func (p Policy) VolatilityAdjustedLimit(annualized float64) float64 {
	var m float64
	switch {
	case annualized < 0.25:
		m = 1.0
	case annualized < 0.50:
		m = 0.85 - (annualized-0.25)*0.4
	case annualized < 0.75:
		m = 0.65 - (annualized-0.50)*0.6
	case annualized < 1.00:
		m = 0.30
	default:
		m = 0.13
	}
	m = math.Max(p.MinMultiplier, math.Min(1.0, m))
	return p.MaxPositionPct * m
}
