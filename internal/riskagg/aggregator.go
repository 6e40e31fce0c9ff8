// Package riskagg computes portfolio-level risk: aggregate Greeks,
// concentration and correlation metrics, per-underlying breakdowns, and
// Value-at-Risk.
//
// All public operations are pure functions of their inputs except for the
// optional correlation matrix and historical-volatility table, which are set
// via explicit update calls and guarded by a read-write mutex.
package riskagg

import (
	"math"
	"sort"
	"sync"
	"time"

	"risk-systemv1/internal/model"
)

// Correlations used by the static fallback table when no explicit matrix has
// been supplied.
const (
	corrSame        = 1.0
	corrIndexIndex  = 0.7
	corrIndexSingle = 0.4
	corrDefault     = 0.3
)

// indexUnderlyings are the NSE index products recognized by the static
// correlation heuristic.
var indexUnderlyings = map[string]bool{
	"NIFTY":      true,
	"BANKNIFTY":  true,
	"FINNIFTY":   true,
	"MIDCPNIFTY": true,
	"SENSEX":     true,
}

// Aggregator produces portfolio risk snapshots.
type Aggregator struct {
	mu       sync.RWMutex
	corr     *model.CorrelationMatrix
	histVols map[string]float64 // underlying -> annualized vol

	vars *VaREngine

	// ObserveVaR and ObserveSnapshot receive computation latencies in
	// seconds. Optional, set before first use.
	ObserveVaR      func(seconds float64)
	ObserveSnapshot func(seconds float64)
}

// New creates an Aggregator using the given VaR engine.
func New(vars *VaREngine) *Aggregator {
	return &Aggregator{
		histVols: make(map[string]float64),
		vars:     vars,
	}
}

// SetCorrelationMatrix replaces the explicit correlation matrix. Passing nil
// reverts to the static default table.
func (a *Aggregator) SetCorrelationMatrix(m *model.CorrelationMatrix) {
	a.mu.Lock()
	a.corr = m
	a.mu.Unlock()
}

// SetHistoricalVols replaces the per-underlying historical volatility table
// used by the VaR historical strategy.
func (a *Aggregator) SetHistoricalVols(vols map[string]float64) {
	cp := make(map[string]float64, len(vols))
	for k, v := range vols {
		cp[k] = v
	}
	a.mu.Lock()
	a.histVols = cp
	a.mu.Unlock()
}

// AggregateGreeks sums position Greeks across the portfolio. Each option
// position contributes its per-contract Greeks scaled by quantity and by the
// side sign (+1 long, -1 short); futures contribute zero Greeks. The result
// is rounded to 4 decimals per field. Empty input yields all-zero Greeks.
func (a *Aggregator) AggregateGreeks(positions []model.Position) model.Greeks {
	var total model.Greeks
	for _, p := range positions {
		opt, ok := p.(*model.OptionPosition)
		if !ok {
			continue
		}
		total = total.Add(opt.Greeks.Scale(opt.Qty * opt.Side.Sign()))
	}
	return total.Round4()
}

// Concentration computes concentration metrics over absolute position
// exposures. A zero totalValue yields all-zero percentages and HHI, never
// NaN.
func (a *Aggregator) Concentration(positions []model.Position, totalValue float64) model.ConcentrationMetrics {
	byUnderlying := make(map[string]float64)
	exposures := make([]float64, 0, len(positions))
	for _, p := range positions {
		c := p.Core()
		exp := math.Abs(c.PositionValue)
		byUnderlying[c.Underlying] += exp
		exposures = append(exposures, exp)
	}

	m := model.ConcentrationMetrics{
		UnderlyingCount:    len(byUnderlying),
		UnderlyingPercents: make(map[string]float64, len(byUnderlying)),
	}
	if totalValue == 0 {
		return m
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(exposures)))
	if len(exposures) > 0 {
		m.LargestPositionPercent = exposures[0] / totalValue * 100
	}
	top5 := 0.0
	for i, e := range exposures {
		if i >= 5 {
			break
		}
		top5 += e
	}
	m.Top5PositionsPercent = top5 / totalValue * 100

	for u, exp := range byUnderlying {
		share := exp / totalValue
		m.UnderlyingPercents[u] = share * 100
		m.HHI += share * share
	}
	return m
}

// UnderlyingRisk groups positions per underlying, netting Greeks with the
// same sign convention as AggregateGreeks.
func (a *Aggregator) UnderlyingRisk(positions []model.Position, totalValue float64) map[string]model.UnderlyingRisk {
	out := make(map[string]model.UnderlyingRisk)
	for _, p := range positions {
		c := p.Core()
		r := out[c.Underlying]
		r.Underlying = c.Underlying
		r.TotalExposure += math.Abs(c.PositionValue)
		r.PositionCount++
		if opt, ok := p.(*model.OptionPosition); ok {
			g := opt.Greeks.Scale(opt.Qty * opt.Side.Sign())
			r.NetDelta += g.Delta
			r.NetGamma += g.Gamma
			r.NetTheta += g.Theta
			r.NetVega += g.Vega
		}
		out[c.Underlying] = r
	}
	if totalValue != 0 {
		for u, r := range out {
			r.PercentOfPortfolio = r.TotalExposure / totalValue * 100
			out[u] = r
		}
	}
	return out
}

// CorrelationRisk returns pairwise correlation risk for every unordered pair
// of distinct underlyings, keyed "A-B": correlation(A,B) *
// sqrt(exposureA * exposureB).
func (a *Aggregator) CorrelationRisk(positions []model.Position) map[string]float64 {
	byUnderlying := make(map[string]float64)
	for _, p := range positions {
		c := p.Core()
		byUnderlying[c.Underlying] += math.Abs(c.PositionValue)
	}

	names := make([]string, 0, len(byUnderlying))
	for u := range byUnderlying {
		names = append(names, u)
	}
	sort.Strings(names)

	out := make(map[string]float64)
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			ua, ub := names[i], names[j]
			corr := a.correlation(ua, ub)
			out[ua+"-"+ub] = corr * math.Sqrt(byUnderlying[ua]*byUnderlying[ub])
		}
	}
	return out
}

// correlation looks up the pairwise correlation: explicit matrix first
// (default 0.3 when either symbol is absent), otherwise the static table.
func (a *Aggregator) correlation(ua, ub string) float64 {
	if ua == ub {
		return corrSame
	}
	a.mu.RLock()
	corr := a.corr
	a.mu.RUnlock()

	if corr != nil {
		if v, ok := corr.Lookup(ua, ub); ok {
			return v
		}
		return corrDefault
	}

	switch {
	case indexUnderlyings[ua] && indexUnderlyings[ub]:
		return corrIndexIndex
	case indexUnderlyings[ua] || indexUnderlyings[ub]:
		return corrIndexSingle
	default:
		return corrDefault
	}
}

// Aggregate composes the full risk snapshot: Greeks, concentration,
// per-underlying risk, and Value-at-Risk, stamped with the current time.
// MarginUsed is the sum of each position's caller-supplied margin field.
func (a *Aggregator) Aggregate(positions []model.Position, totalValue, availableMargin float64, params VaRParams) *model.PortfolioRisk {
	start := time.Now()
	var marginUsed, derivExposure float64
	for _, p := range positions {
		c := p.Core()
		marginUsed += c.MarginUsed
		derivExposure += math.Abs(c.PositionValue)
	}

	risk := &model.PortfolioRisk{
		TotalValue:          totalValue,
		DerivativesExposure: derivExposure,
		MarginUsed:          marginUsed,
		MarginAvailable:     availableMargin,
		ValueAtRisk:         a.ValueAtRisk(positions, params),
		PortfolioGreeks:     a.AggregateGreeks(positions),
		ConcentrationRisk:   a.Concentration(positions, totalValue),
		UnderlyingRisks:     a.UnderlyingRisk(positions, totalValue),
		Timestamp:           time.Now().UTC(),
	}
	if a.ObserveSnapshot != nil {
		a.ObserveSnapshot(time.Since(start).Seconds())
	}
	return risk
}

// histVol returns the historical volatility for an underlying, if known.
func (a *Aggregator) histVol(underlying string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.histVols[underlying]
	return v, ok
}
