package riskagg

import (
	"errors"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"risk-systemv1/internal/model"
)

const (
	monteCarloTrials = 10000
	defaultVol       = 0.25 // annualized fallback when no vol is known
	defaultZScore    = 1.65
)

// zScores maps confidence levels to one-sided normal quantiles.
var zScores = map[float64]float64{
	0.90: 1.28,
	0.95: 1.65,
	0.99: 2.33,
}

// VaRParams selects the estimation strategy and its horizon.
type VaRParams struct {
	ConfidenceLevel float64 `json:"confidence_level"`
	TimeHorizonDays float64 `json:"time_horizon_days"`
	LookbackDays    int     `json:"lookback_days"`
	UseMonteCarlo   bool    `json:"use_monte_carlo"`
}

// RandSource yields uniform draws in [0,1). Injectable so deterministic
// tests can supply a fixed sequence.
type RandSource interface {
	Float64() float64
}

// VaREngine estimates portfolio Value-at-Risk. Strategy selection is
// explicit via params; when a primary strategy fails the engine downgrades
// to the simple fallback rather than surfacing an error.
type VaREngine struct {
	trials int
	rng    RandSource
}

// NewVaREngine creates a VaR engine with the given random source. A nil rng
// falls back to a time-seeded math/rand source.
func NewVaREngine(rng RandSource) *VaREngine {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &VaREngine{trials: monteCarloTrials, rng: rng}
}

// ValueAtRisk estimates portfolio VaR. Empty positions return 0. This method
// never returns an error: primary-strategy failures are logged and the
// simple fallback result is returned instead.
func (e *VaREngine) ValueAtRisk(a *Aggregator, positions []model.Position, params VaRParams) float64 {
	if len(positions) == 0 {
		return 0
	}

	var v float64
	var err error
	if params.UseMonteCarlo {
		v, err = e.monteCarlo(a, positions, params)
	} else {
		v, err = e.historical(a, positions, params)
	}
	if err != nil {
		log.Printf("[var] primary strategy failed, using fallback: %v", err)
		return e.simple(a, positions, params)
	}
	return v
}

// ValueAtRisk on the Aggregator binds its state (historical vols) to the
// embedded engine.
func (a *Aggregator) ValueAtRisk(positions []model.Position, params VaRParams) float64 {
	start := time.Now()
	v := a.vars.ValueAtRisk(a, positions, params)
	if a.ObserveVaR != nil {
		a.ObserveVaR(time.Since(start).Seconds())
	}
	return v
}

// historical estimates VaR from a first-order Greeks expansion of portfolio
// volatility scaled by the confidence z-score and horizon.
func (e *VaREngine) historical(a *Aggregator, positions []model.Position, params VaRParams) (float64, error) {
	exposure := totalNotional(positions)
	greeks := a.AggregateGreeks(positions)
	avgVol := a.averageVol(positions)

	portfolioVol := math.Abs(greeks.Delta)*exposure*avgVol +
		0.5*math.Abs(greeks.Gamma)*exposure*avgVol*avgVol +
		math.Abs(greeks.Vega)*0.05

	v := portfolioVol * zScore(params.ConfidenceLevel) * math.Sqrt(params.TimeHorizonDays)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("historical VaR not finite")
	}
	return v, nil
}

// monteCarlo simulates trial P&Ls from Box-Muller normal draws and reads the
// loss quantile at (1 - confidence).
func (e *VaREngine) monteCarlo(a *Aggregator, positions []model.Position, params VaRParams) (float64, error) {
	exposure := totalNotional(positions)
	greeks := a.AggregateGreeks(positions)

	pnls := make([]float64, e.trials)
	for i := 0; i < e.trials; i++ {
		move, volShock := e.normalPair()
		volMove := volShock * 0.1

		spotPnL := greeks.Delta * move * exposure * 0.01
		gammaPnL := 0.5 * greeks.Gamma * math.Pow(move*exposure*0.01, 2)
		vegaPnL := greeks.Vega * volMove
		thetaPnL := greeks.Theta * params.TimeHorizonDays

		pnls[i] = spotPnL + gammaPnL + vegaPnL + thetaPnL
	}
	sort.Float64s(pnls)

	idx := int(math.Floor((1 - params.ConfidenceLevel) * float64(e.trials)))
	if idx < 0 || idx >= len(pnls) {
		return 0, errors.New("monte carlo quantile index out of range")
	}
	v := math.Abs(pnls[idx])
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("monte carlo VaR not finite")
	}
	return v, nil
}

// simple is the fallback strategy: exposure * avgVol * z * sqrt(horizon).
func (e *VaREngine) simple(a *Aggregator, positions []model.Position, params VaRParams) float64 {
	return totalNotional(positions) * a.averageVol(positions) *
		zScore(params.ConfidenceLevel) * math.Sqrt(params.TimeHorizonDays)
}

// normalPair draws two independent standard normals via Box-Muller.
func (e *VaREngine) normalPair() (float64, float64) {
	u1, u2 := e.rng.Float64(), e.rng.Float64()
	if u1 <= 0 {
		u1 = math.SmallestNonzeroFloat64
	}
	r := math.Sqrt(-2 * math.Log(u1))
	return r * math.Cos(2*math.Pi*u2), r * math.Sin(2*math.Pi*u2)
}

// totalNotional sums notional exposure: strike*qty for options,
// price*qty*multiplier for futures, abs(positionValue) otherwise.
func totalNotional(positions []model.Position) float64 {
	var total float64
	for _, p := range positions {
		switch pos := p.(type) {
		case *model.OptionPosition:
			total += pos.Strike * pos.Qty
		case *model.FuturesPosition:
			total += pos.CurrentPrice * pos.Qty * pos.Multiplier
		default:
			total += math.Abs(p.Core().PositionValue)
		}
	}
	return total
}

// averageVol averages volatility across positions: implied vol for options,
// else the per-underlying historical vol, else the 25% default.
func (a *Aggregator) averageVol(positions []model.Position) float64 {
	if len(positions) == 0 {
		return defaultVol
	}
	var sum float64
	for _, p := range positions {
		if opt, ok := p.(*model.OptionPosition); ok && opt.ImpliedVol > 0 {
			sum += opt.ImpliedVol
			continue
		}
		if v, ok := a.histVol(p.Core().Underlying); ok {
			sum += v
			continue
		}
		sum += defaultVol
	}
	return sum / float64(len(positions))
}

func zScore(confidence float64) float64 {
	if z, ok := zScores[confidence]; ok {
		return z
	}
	return defaultZScore
}
