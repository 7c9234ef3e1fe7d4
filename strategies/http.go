package strategies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
)

// maxResponse bounds how much of a decision response is read.
const maxResponse = 1 << 20

// DecisionRequest is the body POSTed to a decision service.
type DecisionRequest struct {
	Date      string                     `json:"date"`
	Tickers   []string                   `json:"tickers"`
	Portfolio portfolio.Snapshot         `json:"portfolio"`
	Prices    map[string]decimal.Decimal `json:"prices"`
}

// HTTPSource asks an external service, such as an analyst ensemble, for each
// day's decisions. The response may be plain JSON or model text containing
// JSON; see ParseDecisions.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) (*HTTPSource, error) {
	if url == "" {
		return nil, fmt.Errorf("http strategy: no url")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPSource{url: url, client: &http.Client{Timeout: timeout}}, nil
}

func (h *HTTPSource) Name() string { return "http:" + h.url }

func (h *HTTPSource) Decide(ctx context.Context, date time.Time, snap portfolio.Snapshot, prices map[string]decimal.Decimal) (Decisions, error) {
	req := DecisionRequest{
		Date:      date.Format(market.DateLayout),
		Portfolio: snap,
		Prices:    prices,
	}
	for t := range prices {
		req.Tickers = append(req.Tickers, t)
	}
	sort.Strings(req.Tickers)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(hr)
	if err != nil {
		return nil, fmt.Errorf("decision request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, fmt.Errorf("read decision response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("decision service returned %s", resp.Status)
	}
	return ParseDecisions(data)
}
