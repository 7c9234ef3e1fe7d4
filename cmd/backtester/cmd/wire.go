package cmd

import (
	"fmt"
	"log/slog"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/market/store"
)

func nop() error { return nil }

// buildPrices returns the configured price provider and a func that releases
// whatever it holds open.
func buildPrices(cfg *config.Config) (market.PriceProvider, func() error, error) {
	switch cfg.Prices.Source {
	case "memory":
		tbl, err := cfg.InlineTable()
		if err != nil {
			return nil, nop, err
		}
		return tbl, nop, nil

	case "csv":
		tbl, err := market.LoadCSV(cfg.Prices.CSVPath)
		if err != nil {
			return nil, nop, fmt.Errorf("load prices: %w", err)
		}
		return tbl, nop, nil

	case "binance":
		return buildBinance(cfg.Prices)
	}
	return nil, nop, fmt.Errorf("unknown price source %q", cfg.Prices.Source)
}

func buildBinance(pc config.PricesConfig) (*market.BinanceProvider, func() error, error) {
	opts := []market.BinanceOption{market.WithProviderLogger(slog.Default())}
	if pc.BaseURL != "" {
		opts = append(opts, market.WithBaseURL(pc.BaseURL))
	}
	if pc.Interval != "" {
		opts = append(opts, market.WithInterval(pc.Interval))
	}
	if pc.Concurrency > 0 {
		opts = append(opts, market.WithConcurrency(pc.Concurrency))
	}

	release := nop
	if pc.CacheDSN != "" {
		st, err := store.Open(pc.CacheDSN)
		if err != nil {
			return nil, nop, fmt.Errorf("open price cache: %w", err)
		}
		opts = append(opts, market.WithStore(st))
		release = st.Close
	}

	key, secret := config.BinanceKeys()
	return market.NewBinanceProvider(key, secret, opts...), release, nil
}

// buildJournal opens the configured journal, or returns nil for "none".
func buildJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.DaysFile, jc.RunsFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}
