package strategies

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Scripted replays decisions from a file keyed by date:
//
//	"2024-01-02":
//	  AAPL: {action: buy, quantity: 10}
//	"2024-01-09":
//	  AAPL: {action: sell, quantity: 10}
//
// JSON with the same shape works too. Dates not in the script hold.
type Scripted struct {
	name string
	days map[string]Decisions
}

// NewScripted builds a script from decisions keyed by YYYY-MM-DD.
func NewScripted(name string, days map[string]Decisions) *Scripted {
	if name == "" {
		name = "scripted"
	}
	return &Scripted{name: name, days: days}
}

// LoadScript reads a YAML or JSON script.
func LoadScript(path string) (*Scripted, error) {
	if path == "" {
		return nil, fmt.Errorf("scripted: no script path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.name = "scripted:" + path
	return s, nil
}

// ParseScript parses script text. Every key must be a valid date.
func ParseScript(data []byte) (*Scripted, error) {
	days := map[string]Decisions{}
	if err := yaml.Unmarshal(data, &days); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for k := range days {
		if _, err := time.Parse(market.DateLayout, k); err != nil {
			return nil, fmt.Errorf("bad script date %q: %w", k, err)
		}
	}
	return NewScripted("", days), nil
}

func (s *Scripted) Name() string { return s.name }

// Days is the number of dated entries.
func (s *Scripted) Days() int { return len(s.days) }

func (s *Scripted) Decide(_ context.Context, date time.Time, _ portfolio.Snapshot, _ map[string]decimal.Decimal) (Decisions, error) {
	d, ok := s.days[date.Format(market.DateLayout)]
	if !ok {
		return Decisions{}, nil
	}
	out := make(Decisions, len(d))
	for t, v := range d {
		out[t] = v
	}
	return out, nil
}
