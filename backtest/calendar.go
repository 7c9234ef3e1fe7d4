package backtest

import (
	"time"

	"github.com/rustyeddy/backtester/market"
)

// BusinessDays returns every Monday through Friday from start to end
// inclusive, as UTC midnights. Holidays are not removed; a provider with no
// close for a holiday causes that day to be skipped.
func BusinessDays(start, end time.Time) []time.Time {
	start, end = market.Day(start), market.Day(end)
	if end.Before(start) {
		return nil
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		days = append(days, d)
	}
	return days
}
