package journal

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"
	"text/template"
	"time"
)

// BacktestRun mirrors the backtest_runs table. Fields ending in Pct are
// percentages; every other ratio is a plain fraction.
type BacktestRun struct {
	RunID    string
	Created  time.Time
	Strategy string
	Tickers  []string
	Dataset  string
	Config   []byte // yaml of the run configuration

	Start time.Time
	End   time.Time

	InitialCapital    float64
	FinalValue        float64
	MarginRequirement float64
	RiskFreeRate      float64

	ReturnPct        float64
	AnnualizedReturn float64
	Volatility       float64
	Sharpe           float64
	Sortino          float64
	MaxDDPct         float64
	MaxDDDate        time.Time

	GrossExposure  float64
	NetExposure    float64
	LongShortRatio float64

	TradingDays int
	SkippedDays int
	Trades      int
	Wins        int
	Losses      int

	// Derived
	NetPL   float64
	WinRate float64

	OrgPath string
	Notes   []string
}

func winRate(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses)
}

// Finalize fills the derived fields.
func (r *BacktestRun) Finalize() {
	r.NetPL = r.FinalValue - r.InitialCapital
	r.WinRate = winRate(r.Wins, r.Losses)
}

var backtestOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"ratio": func(x float64) string {
		if math.IsInf(x, 1) || x < 0 {
			return "inf"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"join": strings.Join,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02")
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// RenderOrg renders the run as an Org-mode section.
func (r *BacktestRun) RenderOrg() (string, error) {
	buf := new(bytes.Buffer)
	if err := backtestOrg.Execute(buf, r); err != nil {
		return "", fmt.Errorf("render org: %w", err)
	}
	return buf.String(), nil
}

// WriteBacktestOrg renders the run into OrgPath.
func (r *BacktestRun) WriteBacktestOrg() error {
	if r.OrgPath == "" {
		return fmt.Errorf("write org: no path set for run %s", r.RunID)
	}
	out, err := r.RenderOrg()
	if err != nil {
		return err
	}
	return os.WriteFile(r.OrgPath, []byte(out), 0644)
}

const BacktestOrgTemplate = `
* BACKTEST: {{.Strategy}} {{join .Tickers ","}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:TICKERS:     {{join .Tickers ","}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:START_VAL:   {{printf "%.2f" .InitialCapital}}
:END_VAL:     {{printf "%.2f" .FinalValue}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Parameters
| Parameter          | Value |
|--------------------+-------|
| Initial capital    | {{printf "%.2f" .InitialCapital}} |
| Margin requirement | {{printf "%.2f" (mul100 .MarginRequirement)}}% |
| Risk-free rate     | {{printf "%.2f" (mul100 .RiskFreeRate)}}% |
{{- if .Config }}

#+begin_src yaml
{{printf "%s" .Config}}
#+end_src
{{- end }}

** Performance Summary
- Net P/L:            *{{printf "%.2f" .NetPL}}*
- Return:             *{{printf "%.2f" .ReturnPct}}%*
- Annualized return:  *{{printf "%.2f" (mul100 .AnnualizedReturn)}}%*
- Volatility:         *{{printf "%.2f" (mul100 .Volatility)}}%*
- Sharpe:             *{{printf "%.2f" .Sharpe}}*
- Sortino:            *{{printf "%.2f" .Sortino}}*
- Max Drawdown:       *{{printf "%.2f" .MaxDDPct}}%*{{if not .MaxDDDate.IsZero}} at {{date .MaxDDDate}}{{end}}
- Gross exposure:     *{{printf "%.2f" .GrossExposure}}*
- Net exposure:       *{{printf "%.2f" .NetExposure}}*
- Long/short ratio:   *{{ratio .LongShortRatio}}*
- Days:               *{{.TradingDays}}* ({{.SkippedDays}} skipped)

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
