package limits

import (
	"context"
	"log"
	"time"

	"risk-systemv1/internal/model"
	"risk-systemv1/internal/riskagg"
)

// PositionSnapshot is the per-account state supplied by the position source
// for one evaluation cycle.
type PositionSnapshot struct {
	Positions       []model.Position
	TotalValue      float64
	AvailableMargin float64
	Margin          model.MarginInfo
	DailyPnL        float64
}

// PositionSource supplies current positions per account on demand. The risk
// engine never mutates what it returns.
type PositionSource interface {
	Snapshot(ctx context.Context, userID, brokerID string) (PositionSnapshot, error)
}

// Checker periodically evaluates every actively monitored account: it
// aggregates a risk snapshot, checks violations, fires the OnViolation hook
// for each, and runs auto risk reduction.
type Checker struct {
	Monitor   *Monitor
	Agg       *riskagg.Aggregator
	Source    PositionSource
	Interval  time.Duration
	VaRParams riskagg.VaRParams

	// OnViolation receives each new violation (alert delivery, metrics).
	OnViolation func(v model.RiskViolation)

	// OnAutoReduction fires once per cycle in which auto risk reduction
	// triggered for an account.
	OnAutoReduction func()
}

// Run evaluates all monitored accounts every Interval until ctx ends.
func (c *Checker) Run(ctx context.Context) {
	interval := c.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAll(ctx)
		}
	}
}

func (c *Checker) checkAll(ctx context.Context) {
	c.Monitor.mu.RLock()
	keys := make([]string, 0, len(c.Monitor.monitoring))
	for k, active := range c.Monitor.monitoring {
		if active {
			keys = append(keys, k)
		}
	}
	c.Monitor.mu.RUnlock()

	for _, key := range keys {
		userID, brokerID, ok := splitKey(key)
		if !ok {
			continue
		}
		snap, err := c.Source.Snapshot(ctx, userID, brokerID)
		if err != nil {
			// Per-account failure: skip this cycle, others proceed.
			log.Printf("[limits] snapshot %s failed: %v", key, err)
			continue
		}

		risk := c.Agg.Aggregate(snap.Positions, snap.TotalValue, snap.AvailableMargin, c.VaRParams)
		violations := c.Monitor.CheckViolations(userID, brokerID, snap.Positions, risk, snap.Margin, snap.DailyPnL)
		if len(violations) == 0 {
			continue
		}

		if c.OnViolation != nil {
			for _, v := range violations {
				c.OnViolation(v)
			}
		}
		if c.Monitor.ExecuteAutoRiskReduction(ctx, userID, brokerID, snap.Positions, violations) {
			log.Printf("[limits] auto risk reduction triggered for %s", key)
			if c.OnAutoReduction != nil {
				c.OnAutoReduction()
			}
		}
	}
}

func splitKey(key string) (userID, brokerID string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
