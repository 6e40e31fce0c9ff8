package feed

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSimulator_EmitsTicksForEveryUnderlying(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]Tick{}

	sim := NewSimulator(SimConfig{
		Underlyings: map[string]float64{"NIFTY": 22000, "BANKNIFTY": 47000},
		Interval:    5 * time.Millisecond,
		Seed:        42,
	}, func(tk Tick) {
		mu.Lock()
		got[tk.Underlying] = append(got[tk.Underlying], tk)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	sim.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	for _, u := range []string{"NIFTY", "BANKNIFTY"} {
		ticks := got[u]
		if len(ticks) == 0 {
			t.Fatalf("no ticks for %s", u)
		}
		for _, tk := range ticks {
			if tk.Spot <= 0 {
				t.Fatalf("%s spot = %v, want positive", u, tk.Spot)
			}
			if tk.Vol == nil || *tk.Vol < 0.05 {
				t.Fatalf("%s vol = %v, want >= 0.05 floor", u, tk.Vol)
			}
			if tk.TS.IsZero() {
				t.Fatalf("%s tick missing timestamp", u)
			}
		}
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	run := func() []float64 {
		var spots []float64
		sim := NewSimulator(SimConfig{
			Underlyings: map[string]float64{"NIFTY": 22000},
			Interval:    time.Millisecond,
			Seed:        7,
		}, func(tk Tick) {
			spots = append(spots, tk.Spot)
		})
		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
		defer cancel()
		sim.Run(ctx)
		return spots
	}

	a, b := run(), run()
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		t.Fatal("no ticks produced")
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			t.Fatalf("tick %d: %v vs %v; same seed should walk identically", i, a[i], b[i])
		}
	}
}
