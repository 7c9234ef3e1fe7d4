package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReadCSV parses rows of
//
//	date,ticker,close
//
// where date is YYYY-MM-DD or RFC3339. A single header row ("date,...") is
// allowed and empty rows are skipped.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	t := NewTable()
	sawFirst := false
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "date") {
				continue
			}
		}

		b, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Add(b)
	}
}

// LoadCSV reads a price file from disk.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func parseBarRow(row []string) (Bar, error) {
	if len(row) < 3 {
		return Bar{}, fmt.Errorf("want 3 fields, got %d", len(row))
	}

	ds := strings.TrimSpace(row[0])
	d, err := time.Parse(DateLayout, ds)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339, ds)
		if err2 != nil {
			return Bar{}, fmt.Errorf("bad date %q: %w", ds, err)
		}
		d = t2
	}

	ticker := strings.TrimSpace(row[1])
	if ticker == "" {
		return Bar{}, fmt.Errorf("empty ticker")
	}

	c, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return Bar{}, fmt.Errorf("bad close %q: %w", row[2], err)
	}
	if !c.IsPositive() {
		return Bar{}, fmt.Errorf("close %s must be positive", c)
	}
	return Bar{Ticker: ticker, Date: Day(d), Close: c}, nil
}

// WriteCSV writes bars with a header row.
func WriteCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "ticker", "close"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{b.Date.Format(DateLayout), b.Ticker, b.Close.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
