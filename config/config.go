// Package config loads and validates backtester configuration files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets. They never live in config files.
const (
	EnvBinanceAPIKey    = "BINANCE_API_KEY"
	EnvBinanceSecretKey = "BINANCE_SECRET_KEY"
	EnvCacheDSN         = "BACKTEST_CACHE_DSN"
)

// Config represents the complete backtest configuration
type Config struct {
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Prices   PricesConfig   `json:"prices" yaml:"prices"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// BacktestConfig contains the simulation parameters
type BacktestConfig struct {
	Tickers           []string `json:"tickers" yaml:"tickers"`
	Start             string   `json:"start" yaml:"start"` // YYYY-MM-DD
	End               string   `json:"end" yaml:"end"`
	InitialCapital    float64  `json:"initial_capital" yaml:"initial_capital"`
	MarginRequirement float64  `json:"margin_requirement" yaml:"margin_requirement"`
	RiskFreeRate      float64  `json:"risk_free_rate" yaml:"risk_free_rate"`
	FailFast          bool     `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`
	DecisionTimeout   string   `json:"decision_timeout,omitempty" yaml:"decision_timeout,omitempty"` // e.g. "2m"
}

// PricesConfig selects where daily closes come from
type PricesConfig struct {
	Source      string `json:"source" yaml:"source"` // "csv", "binance" or "memory"
	CSVPath     string `json:"csv_path,omitempty" yaml:"csv_path,omitempty"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Interval    string `json:"interval,omitempty" yaml:"interval,omitempty"`
	Concurrency int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	CacheDSN    string `json:"cache_dsn,omitempty" yaml:"cache_dsn,omitempty"`

	// Inline closes for the "memory" source: ticker -> date -> close.
	Inline map[string]map[string]float64 `json:"inline,omitempty" yaml:"inline,omitempty"`
}

// StrategyConfig names the decision source and its parameters
type StrategyConfig struct {
	Name           string  `json:"name" yaml:"name"`
	FastPeriod     int     `json:"fast_period,omitempty" yaml:"fast_period,omitempty"`
	SlowPeriod     int     `json:"slow_period,omitempty" yaml:"slow_period,omitempty"`
	Quantity       float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	UseRiskLimits  bool    `json:"use_risk_limits,omitempty" yaml:"use_risk_limits,omitempty"`
	MaxPositionPct float64 `json:"max_position_pct,omitempty" yaml:"max_position_pct,omitempty"`
	AllowShort     bool    `json:"allow_short,omitempty" yaml:"allow_short,omitempty"`
	ScriptPath     string  `json:"script_path,omitempty" yaml:"script_path,omitempty"`
	URL            string  `json:"url,omitempty" yaml:"url,omitempty"`
	Timeout        string  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	DaysFile   string `json:"days_file,omitempty" yaml:"days_file,omitempty"`
	RunsFile   string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgPath    string `json:"org_path,omitempty" yaml:"org_path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML or JSON document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	b := c.Backtest
	if len(b.Tickers) == 0 {
		return fmt.Errorf("backtest.tickers is required")
	}
	start, err := parseDate("backtest.start", b.Start)
	if err != nil {
		return err
	}
	end, err := parseDate("backtest.end", b.End)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("backtest.end must not be before backtest.start")
	}
	if b.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if b.MarginRequirement < 0 || b.MarginRequirement > 1 {
		return fmt.Errorf("backtest.margin_requirement must be between 0 and 1")
	}
	if _, err := parseDuration("backtest.decision_timeout", b.DecisionTimeout); err != nil {
		return err
	}

	switch c.Prices.Source {
	case "csv":
		if c.Prices.CSVPath == "" {
			return fmt.Errorf("prices.csv_path required for csv source")
		}
	case "binance":
		if c.Prices.Concurrency < 0 {
			return fmt.Errorf("prices.concurrency must not be negative")
		}
	case "memory":
		if len(c.Prices.Inline) == 0 {
			return fmt.Errorf("prices.inline required for memory source")
		}
	default:
		return fmt.Errorf("prices.source must be 'csv', 'binance' or 'memory'")
	}

	s := c.Strategy
	switch strings.ToLower(s.Name) {
	case "hold", "noop", "none", "buy-and-hold", "buyandhold":
	case "ema-cross", "emacross", "sma-cross", "smacross":
		if s.FastPeriod < 0 || s.SlowPeriod < 0 {
			return fmt.Errorf("strategy periods must not be negative")
		}
		if s.FastPeriod > 0 && s.SlowPeriod > 0 && s.FastPeriod >= s.SlowPeriod {
			return fmt.Errorf("strategy.fast_period must be less than strategy.slow_period")
		}
	case "scripted", "script":
		if s.ScriptPath == "" {
			return fmt.Errorf("strategy.script_path required for scripted strategy")
		}
	case "http":
		if s.URL == "" {
			return fmt.Errorf("strategy.url required for http strategy")
		}
	case "":
		return fmt.Errorf("strategy.name is required")
	default:
		return fmt.Errorf("unknown strategy: %s", s.Name)
	}
	if s.Quantity < 0 {
		return fmt.Errorf("strategy.quantity must not be negative")
	}
	if s.MaxPositionPct < 0 || s.MaxPositionPct > 1 {
		return fmt.Errorf("strategy.max_position_pct must be between 0 and 1")
	}
	if _, err := parseDuration("strategy.timeout", s.Timeout); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.DaysFile == "" {
			return fmt.Errorf("journal trades_file and days_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(market.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			Tickers:           []string{"BTCUSDT", "ETHUSDT"},
			Start:             "2024-01-01",
			End:               "2024-06-30",
			InitialCapital:    100000,
			MarginRequirement: 0.5,
			RiskFreeRate:      0.02,
			DecisionTimeout:   "2m",
		},
		Prices: PricesConfig{
			Source:      "binance",
			Interval:    "1d",
			Concurrency: 4,
		},
		Strategy: StrategyConfig{
			Name:          "ema-cross",
			FastPeriod:    10,
			SlowPeriod:    30,
			UseRiskLimits: true,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./backtests.db",
		},
	}
}

// Run converts the backtest section. Call Validate first.
func (c *Config) Run() (backtest.Config, error) {
	start, err := parseDate("backtest.start", c.Backtest.Start)
	if err != nil {
		return backtest.Config{}, err
	}
	end, err := parseDate("backtest.end", c.Backtest.End)
	if err != nil {
		return backtest.Config{}, err
	}
	return backtest.Config{
		Tickers:           append([]string(nil), c.Backtest.Tickers...),
		Start:             start,
		End:               end,
		InitialCapital:    decimal.NewFromFloat(c.Backtest.InitialCapital),
		MarginRequirement: decimal.NewFromFloat(c.Backtest.MarginRequirement),
		RiskFreeRate:      c.Backtest.RiskFreeRate,
	}, nil
}

// DecisionTimeout returns the parsed backtest.decision_timeout.
func (c *Config) DecisionTimeout() time.Duration {
	d, _ := parseDuration("backtest.decision_timeout", c.Backtest.DecisionTimeout)
	return d
}

// StrategyParams maps the strategy section onto strategies.Params.
func (c *Config) StrategyParams() strategies.Params {
	s := c.Strategy
	policy := risk.DefaultPolicy()
	if s.MaxPositionPct > 0 {
		policy.MaxPositionPct = s.MaxPositionPct
	}
	timeout, _ := parseDuration("strategy.timeout", s.Timeout)
	return strategies.Params{
		Tickers:       append([]string(nil), c.Backtest.Tickers...),
		FastPeriod:    s.FastPeriod,
		SlowPeriod:    s.SlowPeriod,
		Quantity:      s.Quantity,
		UseRiskLimits: s.UseRiskLimits,
		Policy:        policy,
		AllowShort:    s.AllowShort,
		ScriptPath:    s.ScriptPath,
		URL:           s.URL,
		Timeout:       timeout,
	}
}

// InlineTable builds a price table from prices.inline.
func (c *Config) InlineTable() (*market.Table, error) {
	tbl := market.NewTable()
	for ticker, closes := range c.Prices.Inline {
		for ds, v := range closes {
			d, err := parseDate("prices.inline."+ticker, ds)
			if err != nil {
				return nil, err
			}
			if v <= 0 {
				return nil, fmt.Errorf("prices.inline.%s.%s: close must be positive", ticker, ds)
			}
			tbl.Set(ticker, d, decimal.NewFromFloat(v))
		}
	}
	return tbl, nil
}

// LoadEnv loads KEY=VALUE pairs from the given .env files (default ".env")
// into the process environment. Missing files are ignored; variables that
// are already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv fills secrets the file left empty from the environment.
func (c *Config) ApplyEnv() {
	if c.Prices.CacheDSN == "" {
		c.Prices.CacheDSN = os.Getenv(EnvCacheDSN)
	}
}

// BinanceKeys returns the API key pair from the environment. Public kline
// endpoints work with both empty.
func BinanceKeys() (apiKey, secretKey string) {
	return os.Getenv(EnvBinanceAPIKey), os.Getenv(EnvBinanceSecretKey)
}
