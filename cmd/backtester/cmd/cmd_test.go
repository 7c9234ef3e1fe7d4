package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/backtester/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Backtest = config.BacktestConfig{
		Tickers:           []string{"AAA"},
		Start:             "2024-01-01",
		End:               "2024-01-05",
		InitialCapital:    1000,
		MarginRequirement: 0.5,
		RiskFreeRate:      0.02,
	}
	cfg.Prices = config.PricesConfig{
		Source: "memory",
		Inline: map[string]map[string]float64{
			"AAA": {"2024-01-01": 10, "2024-01-02": 11, "2024-01-03": 12, "2024-01-04": 9, "2024-01-05": 10},
		},
	}
	cfg.Strategy = config.StrategyConfig{Name: "buy-and-hold", Quantity: 3}
	cfg.Journal = config.JournalConfig{
		Type:    "sqlite",
		DBPath:  filepath.Join(dir, "journal.db"),
		OrgPath: filepath.Join(dir, "run.org"),
	}
	return cfg
}

func TestExecuteAndQueryJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := memoryConfig(dir)
	require.NoError(t, cfg.Validate())

	runID, runQuiet = "RUNTEST", true
	t.Cleanup(func() { runID, runQuiet = "", false })

	res, err := execute(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "RUNTEST", res.RunID)
	require.Len(t, res.Ledger, 5)
	require.Len(t, res.Trades(), 1)
	assert.Equal(t, int64(3), res.Trades()[0].Quantity)
	assert.FileExists(t, cfg.Journal.OrgPath)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"journal", "list", "--db", cfg.Journal.DBPath, "--env-file", filepath.Join(dir, "none.env")})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "RUNTEST")
	assert.Contains(t, out.String(), "buy-and-hold")

	out.Reset()
	rootCmd.SetArgs([]string{"journal", "show", "RUNTEST", "--db", cfg.Journal.DBPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "*** BUY 3 AAA")

	out.Reset()
	rootCmd.SetArgs([]string{"journal", "days", "RUNTEST", "--db", cfg.Journal.DBPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "2024-01-05")

	out.Reset()
	rootCmd.SetArgs([]string{"journal", "trades", "--from", "2024-01-01", "--to", "2024-01-01", "--db", cfg.Journal.DBPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "RUNTEST")
	assert.Contains(t, out.String(), "BUY")
	assert.Contains(t, out.String(), "30.00")

	rootCmd.SetArgs([]string{"journal", "trades", "--from", "2024-01-05", "--to", "2024-01-01", "--db", cfg.Journal.DBPath})
	assert.ErrorContains(t, rootCmd.Execute(), "before --from")
}

func TestRunCommandFromFile(t *testing.T) {
	dir := t.TempDir()
	cfg := memoryConfig(dir)
	cfg.Journal = config.JournalConfig{
		Type:       "csv",
		TradesFile: filepath.Join(dir, "trades.csv"),
		DaysFile:   filepath.Join(dir, "days.csv"),
	}
	path := filepath.Join(dir, "backtest.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil); runQuiet = false })

	rootCmd.SetArgs([]string{"run", "--config", path, "--quiet", "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Backtest Result")
	assert.Contains(t, out.String(), "Strategy:      buy-and-hold")

	days, err := os.ReadFile(cfg.Journal.DaysFile)
	require.NoError(t, err)
	assert.Contains(t, string(days), "2024-01-05")
}

func TestRunCommandJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := memoryConfig(dir)
	cfg.Journal = config.JournalConfig{Type: "none"}
	path := filepath.Join(dir, "backtest.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		runQuiet, runJSON, runRiskFree = false, false, 0
		runCmd.Flags().Lookup("risk-free-rate").Changed = false
	})

	rootCmd.SetArgs([]string{"run", "--config", path, "--quiet", "--json", "--log-level", "error", "--risk-free-rate", "0.07"})
	require.NoError(t, rootCmd.Execute())

	var got struct {
		Strategy     string
		RiskFreeRate float64 `json:"risk_free_rate"`
		Metrics      struct {
			Trades   int `json:"trades"`
			Exposure struct {
				LongShortRatio *float64 `json:"long_short_ratio"`
			} `json:"exposure"`
		}
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "buy-and-hold", got.Strategy)
	assert.Equal(t, 0.07, got.RiskFreeRate)
	assert.Equal(t, 1, got.Metrics.Trades)
	assert.Nil(t, got.Metrics.Exposure.LongShortRatio)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"config", "init", "--output", path})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, path)

	rootCmd.SetArgs([]string{"config", "validate", "--file", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Configuration valid")
	assert.Contains(t, out.String(), "BTCUSDT, ETHUSDT")
}

func TestBuildJournalAndPrices(t *testing.T) {
	j, err := buildJournal(config.JournalConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, j)

	_, err = buildJournal(config.JournalConfig{Type: "kafka"})
	assert.Error(t, err)

	cfg := memoryConfig(t.TempDir())
	cfg.Prices = config.PricesConfig{Source: "csv", CSVPath: filepath.Join(t.TempDir(), "missing.csv")}
	_, _, err = buildPrices(cfg)
	assert.ErrorContains(t, err, "load prices")

	cfg.Prices = config.PricesConfig{Source: "binance", BaseURL: "http://127.0.0.1:1"}
	p, release, err := buildPrices(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.NoError(t, release())
	assert.Equal(t, "binance:1d", dataset(cfg))
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error", ""} {
		_, err := parseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}
