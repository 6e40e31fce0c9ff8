package pricing

import (
	"math"

	"risk-systemv1/internal/model"
)

// BlackScholes computes Greeks under the Black-Scholes model with a
// continuous dividend yield. Vega and rho are scaled per 1% move, theta is
// per calendar day, matching broker conventions.
type BlackScholes struct{}

// NewBlackScholes returns a Black-Scholes Greeks provider.
func NewBlackScholes() *BlackScholes {
	return &BlackScholes{}
}

// ComputeGreeks returns delta/gamma/theta/vega/rho for one contract.
// Degenerate inputs (expired, zero vol, non-positive prices) return
// zero-value Greeks rather than NaN.
func (b *BlackScholes) ComputeGreeks(spot, strike, t, r, vol, q float64, class model.OptionClass) model.Greeks {
	if t <= 0 || vol <= 0 || spot <= 0 || strike <= 0 {
		return model.Greeks{}
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (r-q+0.5*vol*vol)*t) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT

	nd1 := normCDF(d1)
	pd1 := normPDF(d1)
	discR := math.Exp(-r * t)
	discQ := math.Exp(-q * t)

	var delta, theta, rho float64
	gamma := discQ * pd1 / (spot * vol * sqrtT)
	vega := spot * discQ * pd1 * sqrtT / 100

	decay := -(spot * discQ * pd1 * vol) / (2 * sqrtT)
	if class == model.Call {
		delta = discQ * nd1
		theta = (decay - r*strike*discR*normCDF(d2) + q*spot*discQ*nd1) / 365
		rho = strike * t * discR * normCDF(d2) / 100
	} else {
		delta = discQ * (nd1 - 1)
		theta = (decay + r*strike*discR*normCDF(-d2) - q*spot*discQ*normCDF(-d1)) / 365
		rho = -strike * t * discR * normCDF(-d2) / 100
	}

	return model.Greeks{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega, Rho: rho}
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
