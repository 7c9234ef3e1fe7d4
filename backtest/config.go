package backtest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
)

var ErrInvalidConfig = errors.New("invalid backtest config")

// Config is what a single run needs to know up front.
type Config struct {
	Tickers           []string
	Start             time.Time
	End               time.Time
	InitialCapital    decimal.Decimal
	MarginRequirement decimal.Decimal
	RiskFreeRate      float64
}

// Validate checks cfg and normalizes the dates to UTC midnight.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("%w: at least one ticker is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Tickers))
	for _, t := range c.Tickers {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty ticker", ErrInvalidConfig)
		}
		if seen[t] {
			return fmt.Errorf("%w: duplicate ticker %q", ErrInvalidConfig, t)
		}
		seen[t] = true
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidConfig)
	}
	c.Start, c.End = market.Day(c.Start), market.Day(c.End)
	if c.End.Before(c.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidConfig,
			c.End.Format(market.DateLayout), c.Start.Format(market.DateLayout))
	}
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: initial capital must be > 0, got %s", ErrInvalidConfig, c.InitialCapital)
	}
	if c.MarginRequirement.IsNegative() || c.MarginRequirement.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: margin requirement must be in [0,1], got %s", ErrInvalidConfig, c.MarginRequirement)
	}
	return nil
}
