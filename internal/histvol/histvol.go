// Package histvol tracks realized volatility per underlying from a rolling
// window of price observations. The annualized figures feed the VaR engine's
// historical-volatility table.
package histvol

import (
	"math"
	"sync"
)

// Tracker keeps one sample ring per underlying.
type Tracker struct {
	mu     sync.RWMutex
	rings  map[string]*ring
	window int
}

// NewTracker creates a Tracker keeping the last window prices per
// underlying. Volatility needs at least 2 observations.
func NewTracker(window int) *Tracker {
	if window < 2 {
		window = 2
	}
	return &Tracker{
		rings:  make(map[string]*ring),
		window: window,
	}
}

// Observe records a price for an underlying. Non-positive prices are
// ignored.
func (t *Tracker) Observe(underlying string, price float64) {
	if price <= 0 {
		return
	}
	t.mu.Lock()
	r, ok := t.rings[underlying]
	if !ok {
		r = newRing(t.window)
		t.rings[underlying] = r
	}
	r.push(price)
	t.mu.Unlock()
}

// Volatility returns the annualized volatility of log returns for an
// underlying, assuming daily observations (sqrt(252) scaling). Returns
// false with fewer than 2 observations.
func (t *Tracker) Volatility(underlying string) (float64, bool) {
	t.mu.RLock()
	r, ok := t.rings[underlying]
	var prices []float64
	if ok {
		prices = r.snapshot()
	}
	t.mu.RUnlock()
	if len(prices) < 2 {
		return 0, false
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(252), true
}

// Snapshot returns the current volatility table for every underlying with
// enough samples.
func (t *Tracker) Snapshot() map[string]float64 {
	t.mu.RLock()
	names := make([]string, 0, len(t.rings))
	for u := range t.rings {
		names = append(names, u)
	}
	t.mu.RUnlock()

	out := make(map[string]float64, len(names))
	for _, u := range names {
		if v, ok := t.Volatility(u); ok {
			out[u] = v
		}
	}
	return out
}
