package feed

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"
)

// SimConfig configures the staging tick simulator.
type SimConfig struct {
	// Underlyings maps each simulated underlying to its starting spot.
	Underlyings map[string]float64

	// Interval between tick rounds. Defaults to 1 second.
	Interval time.Duration

	// Seed for the random walk; 0 uses the current time.
	Seed int64
}

// Simulator produces a random-walk tick stream for offline runs: each round
// every underlying moves by a small normal step and carries a slowly
// drifting implied volatility.
type Simulator struct {
	cfg     SimConfig
	rng     *rand.Rand
	handler Handler

	spots map[string]float64
	vols  map[string]float64
}

// NewSimulator creates a tick simulator.
func NewSimulator(cfg SimConfig, handler Handler) *Simulator {
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	spots := make(map[string]float64, len(cfg.Underlyings))
	vols := make(map[string]float64, len(cfg.Underlyings))
	for u, s := range cfg.Underlyings {
		spots[u] = s
		vols[u] = 0.15
	}
	return &Simulator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		handler: handler,
		spots:   spots,
		vols:    vols,
	}
}

// Run emits ticks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	log.Printf("[feed] simulator started: %d underlyings every %v", len(s.spots), s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			for u := range s.spots {
				s.spots[u] *= 1 + s.rng.NormFloat64()*0.002
				s.vols[u] = math.Max(0.05, s.vols[u]+s.rng.NormFloat64()*0.002)
				vol := s.vols[u]
				s.handler(Tick{Underlying: u, Spot: s.spots[u], Vol: &vol, TS: now})
			}
		}
	}
}
