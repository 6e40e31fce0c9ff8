package greekscache

import (
	"testing"
	"time"

	"risk-systemv1/internal/model"
)

func TestClampFrequency(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{50 * time.Millisecond, 500 * time.Millisecond},
		{500 * time.Millisecond, 500 * time.Millisecond},
		{time.Second, time.Second},
		{5 * time.Second, 5 * time.Second},
		{50 * time.Second, 5 * time.Second},
		{0, 500 * time.Millisecond},
		{-time.Second, 500 * time.Millisecond},
	}
	for _, c := range cases {
		if got := ClampFrequency(c.in); got != c.want {
			t.Errorf("ClampFrequency(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSubscribe_SkipsMalformedSymbols(t *testing.T) {
	s := New(stubProvider{}, Config{}, nil)
	defer s.Shutdown()

	s.Subscribe("u1", []string{testSymbol, "GARBAGE", ""}, time.Second)
	if s.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", s.SubscriberCount())
	}
	if s.EntryCount() != 1 {
		t.Errorf("entry count = %d, want 1 (malformed symbols skipped)", s.EntryCount())
	}
}

func TestSubscribe_ReplacesPrevious(t *testing.T) {
	s := New(stubProvider{}, Config{}, nil)
	defer s.Shutdown()

	s.Subscribe("u1", []string{testSymbol}, time.Second)
	first := s.subs["u1"]
	s.Subscribe("u1", []string{"BANKNIFTY99DEC47000CE"}, 2*time.Second)

	if s.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1 after replacement", s.SubscriberCount())
	}
	cur := s.subs["u1"]
	if cur == first {
		t.Fatal("subscription not replaced")
	}
	if !cur.symbols["BANKNIFTY99DEC47000CE"] || cur.symbols[testSymbol] {
		t.Errorf("replacement kept the old symbol set: %v", cur.symbols)
	}
	if cur.frequency != 2*time.Second {
		t.Errorf("frequency = %v, want 2s", cur.frequency)
	}

	// The old task must already be stopped; Stop returns immediately then.
	done := make(chan struct{})
	go func() {
		first.task.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("old subscription task did not stop")
	}
}

func TestUnsubscribe(t *testing.T) {
	s := New(stubProvider{}, Config{}, nil)
	s.Subscribe("u1", []string{testSymbol}, time.Second)
	s.AggregatePortfolioGreeks("u1", nil)

	s.Unsubscribe("u1")
	if s.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d, want 0", s.SubscriberCount())
	}
	if _, ok := s.PortfolioGreeksFor("u1"); ok {
		t.Error("portfolio greeks survive unsubscribe")
	}

	// Unknown user is a no-op.
	s.Unsubscribe("nobody")
}

func TestShutdown_ClearsEverything(t *testing.T) {
	s := New(stubProvider{}, Config{}, nil)
	s.Subscribe("u1", []string{testSymbol}, time.Second)
	s.Subscribe("u2", []string{"BANKNIFTY99DEC47000CE"}, time.Second)

	s.Shutdown()
	if s.SubscriberCount() != 0 {
		t.Errorf("subscribers after shutdown = %d, want 0", s.SubscriberCount())
	}
	if s.EntryCount() != 0 {
		t.Errorf("entries after shutdown = %d, want 0", s.EntryCount())
	}
}

func TestAggregatePortfolioGreeks(t *testing.T) {
	s := New(stubProvider{}, Config{}, nil)

	long := &model.OptionPosition{
		PositionCore: model.PositionCore{Underlying: "NIFTY", Side: model.Long, Qty: 10},
		Symbol:       testSymbol,
		Greeks:       model.Greeks{Delta: 0.5, Vega: 12},
	}
	short := &model.OptionPosition{
		PositionCore: model.PositionCore{Underlying: "BANKNIFTY", Side: model.Short, Qty: 5},
		Symbol:       "BANKNIFTY99DEC47000CE",
		Greeks:       model.Greeks{Delta: 0.4, Vega: 8},
	}
	fut := &model.FuturesPosition{
		PositionCore: model.PositionCore{Underlying: "NIFTY", Side: model.Long, Qty: 2},
	}

	pg := s.AggregatePortfolioGreeks("u1", []model.Position{long, short, fut})
	if pg.Total.Delta != 3 { // 10*0.5 - 5*0.4
		t.Errorf("total delta = %v, want 3", pg.Total.Delta)
	}
	if pg.Total.Vega != 80 { // 10*12 - 5*8
		t.Errorf("total vega = %v, want 80", pg.Total.Vega)
	}
	if pg.ByUnderlying["NIFTY"].Delta != 5 {
		t.Errorf("NIFTY delta = %v, want 5", pg.ByUnderlying["NIFTY"].Delta)
	}
	if pg.ByUnderlying["BANKNIFTY"].Delta != -2 {
		t.Errorf("BANKNIFTY delta = %v, want -2", pg.ByUnderlying["BANKNIFTY"].Delta)
	}

	cached, ok := s.PortfolioGreeksFor("u1")
	if !ok || cached.Total != pg.Total {
		t.Error("aggregate not cached per user")
	}
}
