// Package feed ingests market-data ticks and forwards them to the Greeks
// cache and the historical-volatility tracker. The feed itself is an
// external collaborator; this package is only the adapter.
package feed

import (
	"context"
	"time"
)

// Tick is one underlying-level price observation. Volatility is optional.
type Tick struct {
	Underlying string    `json:"underlying"`
	Spot       float64   `json:"spot"`
	Vol        *float64  `json:"vol,omitempty"`
	TS         time.Time `json:"ts"`
}

// Handler consumes decoded ticks. Delivery ordering per underlying is
// assumed from upstream, not enforced here.
type Handler func(t Tick)

// Source produces ticks until its context is cancelled.
type Source interface {
	Run(ctx context.Context)
}
