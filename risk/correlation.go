package risk

import (
	"math"
	"sort"
)

// Pearson returns the correlation of two equal-length series, or NaN when
// either has no variance.
func Pearson(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return math.NaN()
	}
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(n)
	mb /= float64(n)

	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(va*vb)
}

// CorrelationMatrix holds pairwise return correlations.
type CorrelationMatrix map[string]map[string]float64

// Correlations aligns the trailing returns of every series and correlates
// each pair. It returns nil when fewer than two series or fewer than
// MinCorrelationRows aligned rows are available.
func (p Policy) Correlations(returns map[string][]float64) CorrelationMatrix {
	if len(returns) < 2 {
		return nil
	}
	rows := -1
	for _, r := range returns {
		if rows < 0 || len(r) < rows {
			rows = len(r)
		}
	}
	if rows < p.MinCorrelationRows || rows < 2 {
		return nil
	}

	m := make(CorrelationMatrix, len(returns))
	for a, ra := range returns {
		m[a] = make(map[string]float64, len(returns))
		for b, rb := range returns {
			m[a][b] = Pearson(ra[len(ra)-rows:], rb[len(rb)-rows:])
		}
	}
	return m
}

// CorrelationMultiplier scales a limit down when a ticker moves with the
// rest of the book and up when it diversifies.
func CorrelationMultiplier(avg float64) float64 {
	switch {
	case avg >= 0.80:
		return 0.70
	case avg >= 0.60:
		return 0.85
	case avg >= 0.40:
		return 1.00
	case avg >= 0.20:
		return 1.05
	default:
		return 1.10
	}
}

// Correlated is one entry of a ticker's most-correlated list.
type Correlated struct {
	Ticker      string  `json:"ticker"`
	Correlation float64 `json:"correlation"`
}

// CorrelationMetrics describes how ticker relates to the comparison set.
type CorrelationMetrics struct {
	Average float64      `json:"avg_correlation"`
	Max     float64      `json:"max_correlation"`
	Top     []Correlated `json:"top_correlated"`
}

// against summarizes ticker's correlations with others. ok is false when
// none of them are defined.
func (m CorrelationMatrix) against(ticker string, others []string) (CorrelationMetrics, bool) {
	row, ok := m[ticker]
	if !ok {
		return CorrelationMetrics{}, false
	}
	var list []Correlated
	for _, o := range others {
		c, ok := row[o]
		if !ok || math.IsNaN(c) {
			continue
		}
		list = append(list, Correlated{Ticker: o, Correlation: c})
	}
	if len(list) == 0 {
		return CorrelationMetrics{}, false
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Correlation != list[j].Correlation {
			return list[i].Correlation > list[j].Correlation
		}
		return list[i].Ticker < list[j].Ticker
	})
	sum := 0.0
	for _, c := range list {
		sum += c.Correlation
	}
	cm := CorrelationMetrics{
		Average: sum / float64(len(list)),
		Max:     list[0].Correlation,
		Top:     list,
	}
	if len(cm.Top) > 3 {
		cm.Top = cm.Top[:3]
	}
	return cm, true
}
