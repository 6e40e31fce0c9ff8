package model

import "time"

// GreeksUpdate is emitted when a tracked symbol's Greeks change
// significantly (any field moves by more than 0.001).
type GreeksUpdate struct {
	Symbol           string    `json:"symbol"`
	Underlying       string    `json:"underlying"`
	Greeks           Greeks    `json:"greeks"`
	Timestamp        time.Time `json:"ts"`
	SpotPrice        float64   `json:"spot_price"`
	ImpliedVolatility float64   `json:"implied_volatility"`
}

// GreeksBatch groups the updates delivered to one subscriber in one cycle.
type GreeksBatch struct {
	UserID  string         `json:"user_id"`
	Updates []GreeksUpdate `json:"updates"`
}
