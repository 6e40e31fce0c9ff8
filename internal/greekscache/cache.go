package greekscache

import (
	"log"
	"math"
	"time"

	"risk-systemv1/internal/model"
	"risk-systemv1/internal/pricing"
	"risk-systemv1/internal/symbols"
)

// Entry is the cached Greeks state for one tracked symbol. One entry exists
// per symbol from first registration until explicit eviction or shutdown.
type Entry struct {
	Symbol     string
	Underlying string
	Contract   symbols.Option

	Greeks     model.Greeks
	LastSpot   float64
	LastVol    float64
	LastUpdate time.Time

	// Position is an optional snapshot of the originating position.
	Position *model.OptionPosition
}

// Track registers a symbol for live Greeks tracking. The optional position
// snapshot seeds the initial spot, volatility, and Greeks. Malformed symbols
// return an error.
func (s *Service) Track(symbol string, pos *model.OptionPosition) error {
	opt, err := symbols.Parse(symbol)
	if err != nil {
		return err
	}
	s.track(opt, pos)
	return nil
}

func (s *Service) track(opt symbols.Option, pos *model.OptionPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[opt.Symbol]; ok {
		return
	}
	e := &Entry{
		Symbol:     opt.Symbol,
		Underlying: opt.Underlying,
		Contract:   opt,
		Position:   pos,
	}
	if pos != nil {
		e.Greeks = pos.Greeks
		e.LastSpot = pos.CurrentPrice
		e.LastVol = pos.ImpliedVol
		e.LastUpdate = time.Now().UTC()
	}
	s.entries[opt.Symbol] = e
}

// Evict removes a symbol from the cache.
func (s *Service) Evict(symbol string) {
	s.mu.Lock()
	delete(s.entries, symbol)
	s.mu.Unlock()
}

// Cached returns a copy of the cache entry for a symbol.
func (s *Service) Cached(symbol string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[symbol]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// EntryCount returns the number of tracked symbols.
func (s *Service) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// OnPriceChange handles a tick for an underlying: every cached symbol under
// it is recomputed unless the price moved less than 0.1% since the last
// recompute. Significant changes update the cache and are pushed to every
// subscriber whose symbol or underlying set matches. vol is optional; nil
// keeps each symbol's last known volatility.
func (s *Service) OnPriceChange(underlying string, spot float64, vol *float64) {
	now := time.Now().UTC()

	s.mu.RLock()
	type work struct {
		symbol   string
		lastSpot float64
		vol      float64
	}
	var todo []work
	for sym, e := range s.entries {
		if e.Underlying != underlying {
			continue
		}
		v := e.LastVol
		if vol != nil {
			v = *vol
		}
		todo = append(todo, work{symbol: sym, lastSpot: e.LastSpot, vol: v})
	}
	s.mu.RUnlock()

	var updates []model.GreeksUpdate
	for _, w := range todo {
		if w.lastSpot > 0 && math.Abs(spot-w.lastSpot)/w.lastSpot < priceMoveGate {
			continue
		}
		if u, ok := s.recompute(w.symbol, spot, w.vol, now); ok {
			updates = append(updates, u)
		}
	}
	if len(updates) > 0 {
		s.dispatch(underlying, updates)
	}
}

// recompute prices one symbol and applies the result to the cache. The
// update is applied last-write-wins by timestamp: a slow in-flight recompute
// never overwrites an entry that a newer tick already refreshed. Returns the
// update event if the change was significant.
func (s *Service) recompute(symbol string, spot, vol float64, ts time.Time) (model.GreeksUpdate, bool) {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	var contract symbols.Option
	var prev model.Greeks
	if ok {
		contract = e.Contract
		prev = e.Greeks
	}
	s.mu.RUnlock()
	if !ok {
		return model.GreeksUpdate{}, false
	}
	if vol <= 0 {
		log.Printf("[greekscache] %s: no volatility available, skipping", symbol)
		s.skipped()
		return model.GreeksUpdate{}, false
	}

	t := pricing.DaysToYears(pricing.DaysToExpiry(contract.Expiry))
	greeks := s.provider.ComputeGreeks(spot, contract.Strike, t, s.cfg.RiskFreeRate, vol, s.cfg.DividendYield, model.OptionClass(contract.Class))
	if s.OnRecompute != nil {
		s.OnRecompute()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[symbol]
	if !ok || ts.Before(cur.LastUpdate) {
		// Entry evicted, or a newer recompute already landed.
		return model.GreeksUpdate{}, false
	}
	significant := greeks.DiffersBy(prev, significanceEps)
	cur.LastSpot = spot
	cur.LastVol = vol
	cur.LastUpdate = ts
	if !significant {
		return model.GreeksUpdate{}, false
	}
	cur.Greeks = greeks

	return model.GreeksUpdate{
		Symbol:            symbol,
		Underlying:        cur.Underlying,
		Greeks:            greeks,
		Timestamp:         ts,
		SpotPrice:         spot,
		ImpliedVolatility: vol,
	}, true
}

// dispatch fans updates out to every subscriber whose symbol or underlying
// set matches, one batch per user.
func (s *Service) dispatch(underlying string, updates []model.GreeksUpdate) {
	s.mu.RLock()
	batches := make(map[string][]model.GreeksUpdate)
	for userID, sub := range s.subs {
		if sub.underlyings[underlying] {
			batches[userID] = updates
			continue
		}
		var matched []model.GreeksUpdate
		for _, u := range updates {
			if sub.symbols[u.Symbol] {
				matched = append(matched, u)
			}
		}
		if len(matched) > 0 {
			batches[userID] = matched
		}
	}
	s.mu.RUnlock()

	for userID, us := range batches {
		s.emit(model.GreeksBatch{UserID: userID, Updates: us})
	}
}
