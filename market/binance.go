package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// klineLimit is the most klines Binance returns per request.
const klineLimit = 1000

// BinanceProvider serves daily closes from Binance spot klines. Tickers are
// Binance symbols such as BTCUSDT. Fetched closes are kept in memory and,
// when a Store is configured, persisted between runs.
type BinanceProvider struct {
	client      *binance.Client
	interval    string
	concurrency int
	store       Store
	log         *slog.Logger

	table  *Table
	mu     sync.Mutex
	loaded map[string]bool
}

type BinanceOption func(*BinanceProvider)

// WithBaseURL points the client at another endpoint, e.g. a test server.
func WithBaseURL(url string) BinanceOption {
	return func(b *BinanceProvider) { b.client.BaseURL = url }
}

func WithInterval(interval string) BinanceOption {
	return func(b *BinanceProvider) { b.interval = interval }
}

// WithConcurrency bounds the number of tickers fetched at once by Prefetch.
func WithConcurrency(n int) BinanceOption {
	return func(b *BinanceProvider) { b.concurrency = n }
}

func WithStore(s Store) BinanceOption {
	return func(b *BinanceProvider) { b.store = s }
}

func WithProviderLogger(l *slog.Logger) BinanceOption {
	return func(b *BinanceProvider) { b.log = l }
}

// NewBinanceProvider creates a provider. Klines are public so the keys may
// be empty.
func NewBinanceProvider(apiKey, secretKey string, opts ...BinanceOption) *BinanceProvider {
	b := &BinanceProvider{
		client:      binance.NewClient(apiKey, secretKey),
		interval:    "1d",
		concurrency: 4,
		log:         slog.Default(),
		table:       NewTable(),
		loaded:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Prefetch loads every ticker over [start, end], fetching tickers
// concurrently.
func (b *BinanceProvider) Prefetch(ctx context.Context, tickers []string, start, end time.Time) error {
	g, ctx := errgroup.WithContext(ctx)
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for _, tk := range tickers {
		tk := tk
		g.Go(func() error {
			return b.load(ctx, tk, start, end)
		})
	}
	return g.Wait()
}

// Close returns a cached close, fetching the single day on a miss.
func (b *BinanceProvider) Close(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	if c, ok := b.table.Lookup(ticker, date); ok {
		return c, nil
	}
	if err := b.load(ctx, ticker, date, date); err != nil {
		return decimal.Zero, err
	}
	if c, ok := b.table.Lookup(ticker, date); ok {
		return c, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrMissingPrice, ticker, date.Format(DateLayout))
}

// Bars returns what has been loaded for ticker so far.
func (b *BinanceProvider) Bars(ticker string, start, end time.Time) []Bar {
	return b.table.Bars(ticker, start, end)
}

func (b *BinanceProvider) load(ctx context.Context, ticker string, start, end time.Time) error {
	start, end = Day(start), Day(end)
	key := fmt.Sprintf("%s|%s|%s", ticker, start.Format(DateLayout), end.Format(DateLayout))

	b.mu.Lock()
	done := b.loaded[key]
	b.mu.Unlock()
	if done {
		return nil
	}

	if b.store != nil {
		bars, err := b.store.Load(ctx, ticker, start, end)
		switch {
		case err != nil:
			b.log.Warn("price cache load failed", slog.String("ticker", ticker), slog.Any("error", err))
		case covers(bars, start, end):
			b.table.Add(bars...)
			b.markLoaded(key)
			b.log.Debug("price cache hit", slog.String("ticker", ticker), slog.Int("bars", len(bars)))
			return nil
		}
	}

	bars, err := b.Fetch(ctx, ticker, start, end)
	if err != nil {
		return err
	}
	b.table.Add(bars...)

	if b.store != nil && len(bars) > 0 {
		if err := b.store.Save(ctx, bars); err != nil {
			b.log.Warn("price cache save failed", slog.String("ticker", ticker), slog.Any("error", err))
		}
	}
	b.markLoaded(key)
	return nil
}

func (b *BinanceProvider) markLoaded(key string) {
	b.mu.Lock()
	b.loaded[key] = true
	b.mu.Unlock()
}

// Fetch downloads klines for ticker over [start, end] without touching the
// cache, paging through the range klineLimit bars at a time.
func (b *BinanceProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error) {
	from := Day(start).UnixMilli()
	to := Day(end).Add(24*time.Hour - time.Millisecond).UnixMilli()

	var bars []Bar
	for from <= to {
		klines, err := b.client.NewKlinesService().
			Symbol(ticker).
			Interval(b.interval).
			StartTime(from).
			EndTime(to).
			Limit(klineLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch klines for %s: %w", ticker, err)
		}

		for _, k := range klines {
			c, err := decimal.NewFromString(k.Close)
			if err != nil {
				return nil, fmt.Errorf("kline close %q for %s: %w", k.Close, ticker, err)
			}
			bars = append(bars, Bar{
				Ticker: ticker,
				Date:   Day(time.UnixMilli(k.OpenTime).UTC()),
				Close:  c,
			})
		}

		b.log.Debug("fetched klines",
			slog.String("ticker", ticker),
			slog.Int("count", len(klines)),
			slog.String("from", time.UnixMilli(from).UTC().Format(DateLayout)),
		)

		if len(klines) < klineLimit {
			break
		}
		from = klines[len(klines)-1].OpenTime + 1
	}
	return bars, nil
}

// covers reports whether bars hold a close for every calendar day in
// [start, end]. Crypto markets trade every day.
func covers(bars []Bar, start, end time.Time) bool {
	days := int(end.Sub(start).Hours()/24) + 1
	seen := make(map[time.Time]bool, len(bars))
	for _, b := range bars {
		seen[Day(b.Date)] = true
	}
	return len(seen) >= days
}
