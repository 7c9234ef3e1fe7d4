package indicators

import (
	"fmt"
	"math"
)

// SimpleMA is a streaming Simple Moving Average indicator
type SimpleMA struct {
	period int
	closes []float64
}

// NewMA creates a new Simple Moving Average indicator with the given period
func NewMA(period int) *SimpleMA {
	return &SimpleMA{
		period: period,
		closes: make([]float64, 0, period),
	}
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("MA(%d)", m.period)
}

func (m *SimpleMA) Warmup() int {
	return m.period
}

func (m *SimpleMA) Reset() {
	m.closes = m.closes[:0]
}

func (m *SimpleMA) Update(c float64) {
	m.closes = append(m.closes, c)
	// Keep only the last 'period' closes
	if len(m.closes) > m.period {
		m.closes = m.closes[1:]
	}
}

func (m *SimpleMA) Ready() bool {
	return len(m.closes) >= m.period
}

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	sum := 0.0
	for _, c := range m.closes {
		sum += c
	}
	return sum / float64(len(m.closes))
}

// ExponentialMA is a streaming Exponential Moving Average indicator
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates a new Exponential Moving Average indicator with the given period
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Warmup() int {
	return e.period
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(c float64) {
	if e.count < e.period {
		// During warmup, accumulate sum for initial SMA
		e.warmupSum += c
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (c-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool {
	return e.count >= e.period
}

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// ReturnVol is the streaming sample standard deviation of daily returns over
// the last period returns.
type ReturnVol struct {
	period  int
	last    float64
	seen    bool
	returns []float64
}

func NewReturnVol(period int) *ReturnVol {
	return &ReturnVol{period: period}
}

func (v *ReturnVol) Name() string {
	return fmt.Sprintf("VOL(%d)", v.period)
}

// Warmup counts closes: period returns need one extra close.
func (v *ReturnVol) Warmup() int {
	return v.period + 1
}

func (v *ReturnVol) Reset() {
	v.seen = false
	v.last = 0
	v.returns = v.returns[:0]
}

func (v *ReturnVol) Update(c float64) {
	if v.seen && v.last != 0 {
		v.returns = append(v.returns, (c-v.last)/v.last)
		if len(v.returns) > v.period {
			v.returns = v.returns[1:]
		}
	}
	v.last, v.seen = c, true
}

func (v *ReturnVol) Ready() bool {
	return v.period >= 2 && len(v.returns) >= v.period
}

func (v *ReturnVol) Value() float64 {
	if !v.Ready() {
		return 0
	}
	sd, err := StdDev(v.returns, v.period)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd
}
