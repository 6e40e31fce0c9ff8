package histvol

import (
	"math"
	"testing"
)

func TestVolatility_NeedsTwoSamples(t *testing.T) {
	tr := NewTracker(16)
	if _, ok := tr.Volatility("NIFTY"); ok {
		t.Fatal("volatility reported for unknown underlying")
	}
	tr.Observe("NIFTY", 22000)
	if _, ok := tr.Volatility("NIFTY"); ok {
		t.Fatal("volatility reported with a single sample")
	}
	tr.Observe("NIFTY", 22100)
	if _, ok := tr.Volatility("NIFTY"); !ok {
		t.Fatal("volatility missing with two samples")
	}
}

func TestVolatility_ConstantPrice(t *testing.T) {
	tr := NewTracker(16)
	for i := 0; i < 10; i++ {
		tr.Observe("NIFTY", 22000)
	}
	v, ok := tr.Volatility("NIFTY")
	if !ok {
		t.Fatal("no volatility")
	}
	if v != 0 {
		t.Errorf("constant price vol = %v, want 0", v)
	}
}

func TestVolatility_KnownSeries(t *testing.T) {
	tr := NewTracker(16)
	// Alternating prices give log returns of +-a with zero mean, so the
	// variance is exactly a^2.
	a := 0.01
	up := 100 * math.Exp(a)
	for _, p := range []float64{100, up, 100, up, 100} {
		tr.Observe("NIFTY", p)
	}

	v, ok := tr.Volatility("NIFTY")
	if !ok {
		t.Fatal("no volatility")
	}
	want := a * math.Sqrt(252)
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("vol = %v, want %v", v, want)
	}
}

func TestObserve_IgnoresNonPositive(t *testing.T) {
	tr := NewTracker(16)
	tr.Observe("NIFTY", 0)
	tr.Observe("NIFTY", -5)
	if _, ok := tr.Volatility("NIFTY"); ok {
		t.Fatal("non-positive prices were recorded")
	}
}

func TestTracker_WindowOverwrites(t *testing.T) {
	tr := NewTracker(4)
	// Early wild swings should age out of the window.
	tr.Observe("NIFTY", 100)
	tr.Observe("NIFTY", 500)
	tr.Observe("NIFTY", 50)
	for i := 0; i < 10; i++ {
		tr.Observe("NIFTY", 200)
	}

	v, ok := tr.Volatility("NIFTY")
	if !ok {
		t.Fatal("no volatility")
	}
	if v != 0 {
		t.Errorf("vol after swings aged out = %v, want 0", v)
	}
}

func TestSnapshot(t *testing.T) {
	tr := NewTracker(16)
	tr.Observe("NIFTY", 100)
	tr.Observe("NIFTY", 101)
	tr.Observe("BANKNIFTY", 200) // single sample, excluded

	snap := tr.Snapshot()
	if _, ok := snap["NIFTY"]; !ok {
		t.Error("snapshot missing NIFTY")
	}
	if _, ok := snap["BANKNIFTY"]; ok {
		t.Error("snapshot includes underlying with one sample")
	}
}

func TestRing_Snapshot(t *testing.T) {
	r := newRing(4)
	for i := 1; i <= 6; i++ {
		r.push(float64(i))
	}
	got := r.snapshot()
	if len(got) != 4 {
		t.Fatalf("snapshot length = %d, want 4", len(got))
	}
	for i, want := range []float64{3, 4, 5, 6} {
		if got[i] != want {
			t.Errorf("snapshot[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 250: 256}
	for in, want := range cases {
		if got := nextPow2(in); got != want {
			t.Errorf("nextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
