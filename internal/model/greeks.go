package model

import "math"

// Greeks holds the five option sensitivities. It is an immutable value type:
// methods return new values, never mutate the receiver. Values stay unrounded
// internally; Round4 is applied only at aggregation boundaries.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Add returns the component-wise sum of g and o.
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Theta: g.Theta + o.Theta,
		Vega:  g.Vega + o.Vega,
		Rho:   g.Rho + o.Rho,
	}
}

// Scale returns g with every component multiplied by k.
func (g Greeks) Scale(k float64) Greeks {
	return Greeks{
		Delta: g.Delta * k,
		Gamma: g.Gamma * k,
		Theta: g.Theta * k,
		Vega:  g.Vega * k,
		Rho:   g.Rho * k,
	}
}

// Round4 returns g with every component rounded to 4 decimal places.
func (g Greeks) Round4() Greeks {
	return Greeks{
		Delta: round4(g.Delta),
		Gamma: round4(g.Gamma),
		Theta: round4(g.Theta),
		Vega:  round4(g.Vega),
		Rho:   round4(g.Rho),
	}
}

// DiffersBy reports whether any component of g differs from o by more than
// eps in absolute terms.
func (g Greeks) DiffersBy(o Greeks, eps float64) bool {
	return math.Abs(g.Delta-o.Delta) > eps ||
		math.Abs(g.Gamma-o.Gamma) > eps ||
		math.Abs(g.Theta-o.Theta) > eps ||
		math.Abs(g.Vega-o.Vega) > eps ||
		math.Abs(g.Rho-o.Rho) > eps
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
