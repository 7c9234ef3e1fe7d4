package sim

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Action is the kind of order a decision source asks for.
type Action string

const (
	Buy   Action = "buy"
	Sell  Action = "sell"
	Short Action = "short"
	Cover Action = "cover"
	Hold  Action = "hold"
)

var ErrInvalidOrder = errors.New("invalid order")

// ParseAction normalizes case and whitespace. Unknown strings are returned
// as-is so they reach the executor and become a no-op there.
func ParseAction(s string) Action {
	return Action(strings.ToLower(strings.TrimSpace(s)))
}

// Valid reports whether a is one of the five known actions.
func (a Action) Valid() bool {
	switch a {
	case Buy, Sell, Short, Cover, Hold:
		return true
	}
	return false
}

// Trades reports whether a can change the portfolio.
func (a Action) Trades() bool {
	return a.Valid() && a != Hold
}

func (a *Action) UnmarshalText(b []byte) error {
	*a = ParseAction(string(b))
	return nil
}

// Validate explains why an order would execute as a no-op. ExecuteTrade does
// not need it; the backtest runner uses it to log rejected orders.
func Validate(action Action, quantity float64, price decimal.Decimal) error {
	switch {
	case !action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalidOrder, string(action))
	case action == Hold:
		return nil
	case !price.IsPositive():
		return fmt.Errorf("%w: price %s must be positive", ErrInvalidOrder, price)
	case math.IsInf(quantity, 0) || math.IsNaN(quantity):
		return fmt.Errorf("%w: quantity %v is not finite", ErrInvalidOrder, quantity)
	case wholeShares(quantity) <= 0:
		return fmt.Errorf("%w: quantity %v is less than one share", ErrInvalidOrder, quantity)
	}
	return nil
}

// maxShares caps requests that would not fit in an int64.
const maxShares = int64(1) << 62

// wholeShares floors a requested quantity to whole shares. Non-finite
// quantities are zero.
func wholeShares(q float64) int64 {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return 0
	}
	f := math.Floor(q)
	if f >= float64(maxShares) {
		return maxShares
	}
	return int64(f)
}
