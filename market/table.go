package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Table is an in-memory PriceProvider. It is safe for concurrent use so
// prefetch workers can fill it in parallel.
type Table struct {
	mu     sync.RWMutex
	closes map[string]map[time.Time]decimal.Decimal
}

func NewTable() *Table {
	return &Table{closes: make(map[string]map[time.Time]decimal.Decimal)}
}

// Set records the close of ticker on date, replacing any earlier value.
func (t *Table) Set(ticker string, date time.Time, close decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.closes[ticker]
	if !ok {
		m = make(map[time.Time]decimal.Decimal)
		t.closes[ticker] = m
	}
	m[Day(date)] = close
}

// Add stores every bar.
func (t *Table) Add(bars ...Bar) {
	for _, b := range bars {
		t.Set(b.Ticker, b.Date, b.Close)
	}
}

func (t *Table) Close(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	if c, ok := t.Lookup(ticker, date); ok {
		return c, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrMissingPrice, ticker, date.Format(DateLayout))
}

// Lookup is Close without the error.
func (t *Table) Lookup(ticker string, date time.Time) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.closes[ticker][Day(date)]
	return c, ok
}

// Tickers returns every ticker with at least one close, sorted.
func (t *Table) Tickers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.closes))
	for k := range t.closes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Bars returns the closes of ticker within [start, end] in date order. A zero
// start or end leaves that side open.
func (t *Table) Bars(ticker string, start, end time.Time) []Bar {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Bar
	for d, c := range t.closes[ticker] {
		if !start.IsZero() && d.Before(Day(start)) {
			continue
		}
		if !end.IsZero() && d.After(Day(end)) {
			continue
		}
		out = append(out, Bar{Ticker: ticker, Date: d, Close: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Len is the total number of closes held.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, m := range t.closes {
		n += len(m)
	}
	return n
}
