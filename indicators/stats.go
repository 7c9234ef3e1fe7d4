package indicators

import (
	"fmt"
	"math"
)

// StdDev is the sample standard deviation of the last period values.
func StdDev(values []float64, period int) (float64, error) {
	if err := checkPeriod(len(values), period); err != nil {
		return 0, err
	}
	if period < 2 {
		return 0, fmt.Errorf("period must be at least 2, got %d", period)
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	ss := 0.0
	for _, v := range window {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(period-1)), nil
}

func checkPeriod(n, period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if n < period {
		return fmt.Errorf("not enough closes: need %d, got %d", period, n)
	}
	return nil
}
