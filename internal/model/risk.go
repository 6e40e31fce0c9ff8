package model

import "time"

// ConcentrationMetrics summarizes how concentrated the portfolio is.
// When total portfolio value is zero every percentage and the HHI is zero.
type ConcentrationMetrics struct {
	LargestPositionPercent float64            `json:"largest_position_percent"`
	Top5PositionsPercent   float64            `json:"top5_positions_percent"`
	UnderlyingCount        int                `json:"underlying_count"`
	HHI                    float64            `json:"hhi"` // Herfindahl-Hirschman Index, 0-1
	UnderlyingPercents     map[string]float64 `json:"underlying_percents"`
}

// UnderlyingRisk aggregates risk for all positions on one underlying.
type UnderlyingRisk struct {
	Underlying         string  `json:"underlying"`
	TotalExposure      float64 `json:"total_exposure"`
	NetDelta           float64 `json:"net_delta"`
	NetGamma           float64 `json:"net_gamma"`
	NetTheta           float64 `json:"net_theta"`
	NetVega            float64 `json:"net_vega"`
	PositionCount      int     `json:"position_count"`
	PercentOfPortfolio float64 `json:"percent_of_portfolio"`
}

// CorrelationMatrix holds pairwise correlations indexed positionally by
// Symbols. Absent entries fall back to the static default table.
type CorrelationMatrix struct {
	Symbols     []string    `json:"symbols"`
	Matrix      [][]float64 `json:"matrix"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Lookup returns the correlation between a and b, or (0, false) if either
// symbol is absent from the matrix.
func (m *CorrelationMatrix) Lookup(a, b string) (float64, bool) {
	ai, bi := -1, -1
	for i, s := range m.Symbols {
		if s == a {
			ai = i
		}
		if s == b {
			bi = i
		}
	}
	if ai < 0 || bi < 0 || ai >= len(m.Matrix) || bi >= len(m.Matrix[ai]) {
		return 0, false
	}
	return m.Matrix[ai][bi], true
}

// MarginInfo is the caller-supplied margin snapshot. Margin availability is
// never derived by the risk engine.
type MarginInfo struct {
	MarginUsed        float64 `json:"margin_used"`
	MarginAvailable   float64 `json:"margin_available"`
	MarginUtilization float64 `json:"margin_utilization"` // percent
}

// PortfolioRisk is a full risk snapshot, recomputed per request and never
// persisted. MarginUsed + MarginAvailable need not equal TotalValue.
type PortfolioRisk struct {
	TotalValue          float64                   `json:"total_value"`
	DerivativesExposure float64                   `json:"derivatives_exposure"`
	MarginUsed          float64                   `json:"margin_used"`
	MarginAvailable     float64                   `json:"margin_available"`
	ValueAtRisk         float64                   `json:"value_at_risk"`
	PortfolioGreeks     Greeks                    `json:"portfolio_greeks"`
	ConcentrationRisk   ConcentrationMetrics      `json:"concentration_risk"`
	UnderlyingRisks     map[string]UnderlyingRisk `json:"underlying_risks"`
	Timestamp           time.Time                 `json:"timestamp"`
}

// PortfolioGreeks is the per-user aggregate kept by the Greeks cache,
// with a per-underlying breakdown.
type PortfolioGreeks struct {
	UserID       string            `json:"user_id"`
	Total        Greeks            `json:"total"`
	ByUnderlying map[string]Greeks `json:"by_underlying"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
