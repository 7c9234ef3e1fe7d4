// Package market supplies daily closing prices to the backtester.
package market

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingPrice is returned when a provider has no close for a ticker on a
// date. The simulation skips the whole day when it sees it.
var ErrMissingPrice = errors.New("missing price")

// DateLayout is the calendar-date format used in CSV files, caches and logs.
const DateLayout = "2006-01-02"

// PriceProvider returns the closing price of ticker on date.
type PriceProvider interface {
	Close(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error)
}

// Prefetcher is implemented by providers that can load a whole range up
// front. The runner calls Prefetch once before the first day.
type Prefetcher interface {
	Prefetch(ctx context.Context, tickers []string, start, end time.Time) error
}

// Bar is one daily close.
type Bar struct {
	Ticker string
	Date   time.Time
	Close  decimal.Decimal
}

// Store persists bars between runs.
type Store interface {
	Load(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error)
	Save(ctx context.Context, bars []Bar) error
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Closes fetches a close for every ticker. It stops at the first error.
func Closes(ctx context.Context, p PriceProvider, tickers []string, date time.Time) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		c, err := p.Close(ctx, t, date)
		if err != nil {
			return nil, err
		}
		out[t] = c
	}
	return out, nil
}
