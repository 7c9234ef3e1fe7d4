package market

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := `date,ticker,close
2024-01-02, AAPL, 185.64

2024-01-02,MSFT,370.87
2024-01-03T00:00:00Z,AAPL,184.25
`
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"AAPL", "MSFT"}, tbl.Tickers())

	c, ok := tbl.Lookup("AAPL", date("2024-01-03"))
	require.True(t, ok)
	assert.Equal(t, "184.25", c.String())
}

func TestReadCSVWithoutHeader(t *testing.T) {
	t.Parallel()

	tbl, err := ReadCSV(strings.NewReader("2024-01-02,AAPL,185.64\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"short row", "2024-01-02,AAPL\n", "want 3 fields"},
		{"bad date", "01/02/2024,AAPL,1\n", "bad date"},
		{"bad close", "2024-01-02,AAPL,abc\n", "bad close"},
		{"zero close", "2024-01-02,AAPL,0\n", "must be positive"},
		{"empty ticker", "2024-01-02, ,5\n", "empty ticker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	bars := []Bar{
		{Ticker: "BTCUSDT", Date: date("2024-01-01"), Close: decimal.RequireFromString("42283.58")},
		{Ticker: "BTCUSDT", Date: date("2024-01-02"), Close: decimal.RequireFromString("44179.55")},
	}

	path := filepath.Join(t.TempDir(), "prices.csv")
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bars))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	assert.True(t, strings.HasPrefix(buf.String(), "date,ticker,close\n"))

	tbl, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, bars, tbl.Bars("BTCUSDT", date("2024-01-01"), date("2024-01-02")))
}

func TestLoadCSVMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
