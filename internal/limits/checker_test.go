package limits

import (
	"context"
	"errors"
	"testing"

	"risk-systemv1/internal/model"
	"risk-systemv1/internal/riskagg"
)

type fakeSource struct {
	snap PositionSnapshot
	err  error
}

func (f fakeSource) Snapshot(context.Context, string, string) (PositionSnapshot, error) {
	return f.snap, f.err
}

func TestChecker_EvaluatesMonitoredAccounts(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	m.StartMonitoring("u1", "b1")
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{MaxPositionSize: f64(1000)})

	var seen []model.RiskViolation
	c := &Checker{
		Monitor: m,
		Agg:     riskagg.New(riskagg.NewVaREngine(nil)),
		Source: fakeSource{snap: PositionSnapshot{
			Positions:  []model.Position{mkPos("p1", 5000, 0)},
			TotalValue: 5000,
		}},
		VaRParams:   riskagg.VaRParams{ConfidenceLevel: 0.95, TimeHorizonDays: 1},
		OnViolation: func(v model.RiskViolation) { seen = append(seen, v) },
	}

	c.checkAll(context.Background())

	found := false
	for _, v := range seen {
		if v.Type == model.ViolationPositionSize {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a position_size violation, got %v", seen)
	}
}

func TestChecker_SkipsFailedSnapshots(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	m.StartMonitoring("u1", "b1")

	called := false
	c := &Checker{
		Monitor:     m,
		Agg:         riskagg.New(riskagg.NewVaREngine(nil)),
		Source:      fakeSource{err: errors.New("broker down")},
		OnViolation: func(model.RiskViolation) { called = true },
	}

	c.checkAll(context.Background())
	if called {
		t.Fatal("violations reported despite snapshot failure")
	}
}

func TestChecker_AutoReductionHook(t *testing.T) {
	m := NewMonitor(nil, nil, &memExecutor{})
	m.StartMonitoring("u1", "b1")
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{
		MaxPositionSize:   f64(1000),
		AutoRiskReduction: bptr(true),
	})

	reductions := 0
	c := &Checker{
		Monitor: m,
		Agg:     riskagg.New(riskagg.NewVaREngine(nil)),
		Source: fakeSource{snap: PositionSnapshot{
			Positions:  []model.Position{mkPos("p1", 5000, 0)}, // 400% over: critical
			TotalValue: 5000,
		}},
		OnAutoReduction: func() { reductions++ },
	}

	c.checkAll(context.Background())
	if reductions != 1 {
		t.Fatalf("auto reduction hook fired %d times, want 1", reductions)
	}
}

func TestSplitKey(t *testing.T) {
	u, b, ok := splitKey("user1:brokerA")
	if !ok || u != "user1" || b != "brokerA" {
		t.Fatalf("splitKey = (%q, %q, %v)", u, b, ok)
	}
	if _, _, ok := splitKey("nocolon"); ok {
		t.Error("splitKey accepted a key without separator")
	}
}
