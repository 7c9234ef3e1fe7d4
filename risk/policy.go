// Package risk sizes positions from recent volatility and the correlation
// between tickers.
package risk

// Policy holds the tunables of the position limiter. The defaults suit
// assets that trade every day, such as crypto pairs.
type Policy struct {
	// MaxPositionPct is the largest share of portfolio value a single
	// ticker may take when volatility is low.
	MaxPositionPct float64

	// MinMultiplier floors the volatility multiplier.
	MinMultiplier float64

	// LookbackDays bounds the returns used for current volatility.
	LookbackDays int

	// PercentileWindow is the rolling window used to rank current
	// volatility against history.
	PercentileWindow int

	// AnnualizationDays scales daily volatility to annual.
	AnnualizationDays float64

	// FallbackDailyVol is assumed when there are too few returns.
	FallbackDailyVol float64

	// MinCorrelationRows is the fewest aligned returns needed before
	// correlations are trusted.
	MinCorrelationRows int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxPositionPct:     0.15,
		MinMultiplier:      0.13,
		LookbackDays:       60,
		PercentileWindow:   30,
		AnnualizationDays:  365,
		FallbackDailyVol:   0.03,
		MinCorrelationRows: 5,
	}
}
