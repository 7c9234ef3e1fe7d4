package strategies

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSourcePostsSnapshot(t *testing.T) {
	var got DecisionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("```json\n{\"decisions\": {\"AAPL\": {\"action\": \"buy\", \"quantity\": 3}}}\n```"))
	}))
	t.Cleanup(srv.Close)

	src, err := NewHTTPSource(srv.URL, time.Second)
	require.NoError(t, err)

	p := newBook(t, 5000, "AAPL", "MSFT")
	prices := map[string]decimal.Decimal{"MSFT": decimal.NewFromInt(370), "AAPL": decimal.NewFromInt(185)}
	ds, err := src.Decide(context.Background(), day0, p.Snapshot(), prices)
	require.NoError(t, err)

	assert.Equal(t, Decision{Action: sim.Buy, Quantity: 3}, ds["AAPL"])
	assert.Equal(t, "2024-01-01", got.Date)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Tickers)
	assert.True(t, got.Portfolio.Cash.Equal(decimal.NewFromInt(5000)))
	assert.True(t, got.Prices["MSFT"].Equal(decimal.NewFromInt(370)))
}

func TestHTTPSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		case "/chatty":
			_, _ = w.Write([]byte("I think you should buy everything."))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)

	p := newBook(t, 5000, "AAPL")
	prices := map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(185)}

	down, err := NewHTTPSource(srv.URL+"/down", time.Second)
	require.NoError(t, err)
	_, err = down.Decide(context.Background(), day0, p.Snapshot(), prices)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnparseableDecision)

	chatty, err := NewHTTPSource(srv.URL+"/chatty", time.Second)
	require.NoError(t, err)
	_, err = chatty.Decide(context.Background(), day0, p.Snapshot(), prices)
	assert.ErrorIs(t, err, ErrUnparseableDecision)

	slow, err := NewHTTPSource(srv.URL+"/slow", time.Second)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = slow.Decide(ctx, day0, p.Snapshot(), prices)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
