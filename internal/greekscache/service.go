// Package greekscache maintains a live, incrementally-updated cache of
// per-instrument option Greeks. It recomputes on price/volatility ticks and
// on per-subscription schedules, and emits update events only when a change
// is significant (any Greek moving by more than 0.001).
package greekscache

import (
	"log"
	"sync"
	"time"

	"risk-systemv1/internal/model"
	"risk-systemv1/internal/pricing"
	"risk-systemv1/internal/symbols"
)

const (
	minFrequency = 500 * time.Millisecond
	maxFrequency = 5 * time.Second

	// significanceEps: a Greeks change smaller than this in every field is
	// not worth publishing.
	significanceEps = 0.001

	// priceMoveGate: price moves under 0.1% skip recomputation entirely.
	priceMoveGate = 0.001
)

// EmitFunc delivers a batch of updates for one subscriber. Hooked to the
// fan-out bus in production, to a recorder in tests.
type EmitFunc func(batch model.GreeksBatch)

// Config holds the pricing inputs shared by every recompute.
type Config struct {
	RiskFreeRate  float64
	DividendYield float64
}

// subscription tracks one user's symbol set and its recompute task.
// Replacing a subscription for the same user fully replaces the prior one,
// including its task.
type subscription struct {
	userID      string
	symbols     map[string]bool
	underlyings map[string]bool
	frequency   time.Duration
	lastUpdate  time.Time
	task        *taskHandle
}

// Service is the real-time Greeks cache and updater.
type Service struct {
	mu         sync.RWMutex
	entries    map[string]*Entry               // key = symbol
	subs       map[string]*subscription        // key = userID
	userGreeks map[string]*model.PortfolioGreeks // key = userID

	provider pricing.Provider
	emit     EmitFunc
	cfg      Config

	// OnRecompute counts every Greeks recomputation; OnSkip counts symbols
	// skipped in a cycle (parse failure or missing data). Optional, set
	// before first use.
	OnRecompute func()
	OnSkip      func()
}

// New creates the cache service. emit may be nil to discard updates.
func New(provider pricing.Provider, cfg Config, emit EmitFunc) *Service {
	if emit == nil {
		emit = func(model.GreeksBatch) {}
	}
	return &Service{
		entries:    make(map[string]*Entry),
		subs:       make(map[string]*subscription),
		userGreeks: make(map[string]*model.PortfolioGreeks),
		provider:   provider,
		emit:       emit,
		cfg:        cfg,
	}
}

// ClampFrequency bounds a requested update frequency into [500ms, 5s].
func ClampFrequency(d time.Duration) time.Duration {
	if d < minFrequency {
		return minFrequency
	}
	if d > maxFrequency {
		return maxFrequency
	}
	return d
}

// Subscribe registers (or replaces) a user's Greeks subscription. Frequency
// is clamped; the underlying set is derived from the symbols; malformed
// symbols are skipped. The subscription's periodic recompute task is
// (re)started.
func (s *Service) Subscribe(userID string, syms []string, frequency time.Duration) {
	frequency = ClampFrequency(frequency)

	sub := &subscription{
		userID:      userID,
		symbols:     make(map[string]bool, len(syms)),
		underlyings: make(map[string]bool),
		frequency:   frequency,
		lastUpdate:  time.Now().UTC(),
	}
	for _, sym := range syms {
		opt, err := symbols.Parse(sym)
		if err != nil {
			log.Printf("[greekscache] subscribe %s: skipping %q: %v", userID, sym, err)
			s.skipped()
			continue
		}
		sub.symbols[opt.Symbol] = true
		sub.underlyings[opt.Underlying] = true
		s.track(opt, nil)
	}

	s.mu.Lock()
	old := s.subs[userID]
	s.subs[userID] = sub
	s.mu.Unlock()

	if old != nil && old.task != nil {
		old.task.Stop()
	}
	sub.task = schedule(frequency, func() { s.refresh(userID) })

	log.Printf("[greekscache] user %s subscribed: %d symbols every %v", userID, len(sub.symbols), frequency)
}

// Unsubscribe cancels the user's recompute task and drops their cached
// portfolio Greeks. Unknown users are a no-op.
func (s *Service) Unsubscribe(userID string) {
	s.mu.Lock()
	sub := s.subs[userID]
	delete(s.subs, userID)
	delete(s.userGreeks, userID)
	s.mu.Unlock()

	if sub != nil && sub.task != nil {
		sub.task.Stop()
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// refresh is the scheduled recompute for one subscription: every symbol is
// re-evaluated from its last known spot and volatility, no new tick
// required.
func (s *Service) refresh(userID string) {
	s.mu.RLock()
	sub := s.subs[userID]
	var syms []string
	if sub != nil {
		for sym := range sub.symbols {
			syms = append(syms, sym)
		}
	}
	s.mu.RUnlock()
	if sub == nil {
		return
	}

	now := time.Now().UTC()
	var updates []model.GreeksUpdate
	for _, sym := range syms {
		s.mu.RLock()
		e, ok := s.entries[sym]
		var spot, vol float64
		if ok {
			spot, vol = e.LastSpot, e.LastVol
		}
		s.mu.RUnlock()
		if !ok || spot <= 0 {
			s.skipped()
			continue
		}
		if u, ok := s.recompute(sym, spot, vol, now); ok {
			updates = append(updates, u)
		}
	}

	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	if cur := s.subs[userID]; cur == sub {
		sub.lastUpdate = now
	}
	s.mu.Unlock()
	s.emit(model.GreeksBatch{UserID: userID, Updates: updates})
}

func (s *Service) skipped() {
	if s.OnSkip != nil {
		s.OnSkip()
	}
}

// Shutdown cancels every subscription task and clears all in-memory state.
func (s *Service) Shutdown() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*subscription)
	s.entries = make(map[string]*Entry)
	s.userGreeks = make(map[string]*model.PortfolioGreeks)
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.task != nil {
			sub.task.Stop()
		}
	}
	log.Printf("[greekscache] shut down, %d subscriptions cancelled", len(subs))
}
