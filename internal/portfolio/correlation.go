// Package portfolio gates new positions against portfolio-level limits and
// sizes them. Admission checks run under one global lock because heat and
// correlation read the full open-position set; per-asset locking could
// oversell the heat budget.
package portfolio

import (
	"math"
	"sync"
)

// minCorrelationPoints is the minimum overlapping return observations needed
// before a correlation is trusted.
const minCorrelationPoints = 20

// CorrelationTracker keeps a trailing window of closes per symbol and
// computes pairwise Pearson correlations over their returns.
type CorrelationTracker struct {
	mu     sync.RWMutex
	window int
	closes map[string][]float64
}

// NewCorrelationTracker builds a tracker with a trailing window of closes
// per symbol.
func NewCorrelationTracker(window int) *CorrelationTracker {
	if window < minCorrelationPoints+1 {
		window = 100
	}
	return &CorrelationTracker{
		window: window,
		closes: make(map[string][]float64),
	}
}

// Observe appends a close price for the symbol, discarding the oldest once
// the window is full.
func (t *CorrelationTracker) Observe(symbol string, close float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	series := append(t.closes[symbol], close)
	if len(series) > t.window {
		series = series[len(series)-t.window:]
	}
	t.closes[symbol] = series
}

// ObserveSeries replaces the symbol's trailing closes wholesale. Used to
// seed the tracker from history on startup.
func (t *CorrelationTracker) ObserveSeries(symbol string, closes []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(closes) > t.window {
		closes = closes[len(closes)-t.window:]
	}
	t.closes[symbol] = append([]float64(nil), closes...)
}

// Correlation returns the Pearson correlation of the two symbols' trailing
// returns. The second result is false when there is not enough overlapping
// data to compute one.
func (t *CorrelationTracker) Correlation(a, b string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ra := returns(t.closes[a])
	rb := returns(t.closes[b])
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	if n < minCorrelationPoints {
		return 0, false
	}
	// Align on the most recent n observations.
	return pearson(ra[len(ra)-n:], rb[len(rb)-n:])
}

func returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

func pearson(x, y []float64) (float64, bool) {
	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n
	var cov, varX, varY float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}
