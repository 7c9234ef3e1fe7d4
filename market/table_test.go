package market

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTableClose(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	tbl.Set("AAPL", date("2024-01-02").Add(15*time.Hour), decimal.RequireFromString("185.64"))

	c, err := tbl.Close(context.Background(), "AAPL", date("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, "185.64", c.String())

	_, err = tbl.Close(context.Background(), "AAPL", date("2024-01-03"))
	assert.ErrorIs(t, err, ErrMissingPrice)

	_, err = tbl.Close(context.Background(), "MSFT", date("2024-01-02"))
	assert.ErrorIs(t, err, ErrMissingPrice)
}

func TestTableCloseHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTable().Close(ctx, "AAPL", date("2024-01-02"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTableBarsAreSortedAndBounded(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	for _, d := range []string{"2024-01-05", "2024-01-02", "2024-01-04", "2024-01-03"} {
		tbl.Set("X", date(d), decimal.NewFromInt(1))
	}

	bars := tbl.Bars("X", date("2024-01-03"), date("2024-01-04"))
	require.Len(t, bars, 2)
	assert.Equal(t, date("2024-01-03"), bars[0].Date)
	assert.Equal(t, date("2024-01-04"), bars[1].Date)

	assert.Len(t, tbl.Bars("X", time.Time{}, time.Time{}), 4)
	assert.Equal(t, 4, tbl.Len())
}

func TestTableConcurrentWriters(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for d := 0; d < 50; d++ {
				tbl.Set(string(rune('A'+i)), date("2024-01-01").AddDate(0, 0, d), decimal.NewFromInt(int64(d+1)))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 400, tbl.Len())
	assert.Len(t, tbl.Tickers(), 8)
}

func TestCloses(t *testing.T) {
	t.Parallel()

	tbl, err := ReadCSV(strings.NewReader("2024-01-02,A,1\n2024-01-02,B,2\n2024-01-03,A,3\n"))
	require.NoError(t, err)

	got, err := Closes(context.Background(), tbl, []string{"A", "B"}, date("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, "2", got["B"].String())

	_, err = Closes(context.Background(), tbl, []string{"A", "B"}, date("2024-01-03"))
	assert.ErrorIs(t, err, ErrMissingPrice)
}
