package greekscache

import (
	"time"

	"risk-systemv1/internal/model"
)

// AggregatePortfolioGreeks sums position Greeks with the standard sign and
// quantity weighting, retaining a per-underlying breakdown. The result is
// cached per user and overwritten on each call.
func (s *Service) AggregatePortfolioGreeks(userID string, positions []model.Position) *model.PortfolioGreeks {
	pg := &model.PortfolioGreeks{
		UserID:       userID,
		ByUnderlying: make(map[string]model.Greeks),
		UpdatedAt:    time.Now().UTC(),
	}

	for _, p := range positions {
		opt, ok := p.(*model.OptionPosition)
		if !ok {
			continue
		}
		g := opt.Greeks.Scale(opt.Qty * opt.Side.Sign())
		pg.Total = pg.Total.Add(g)
		pg.ByUnderlying[opt.Underlying] = pg.ByUnderlying[opt.Underlying].Add(g)
	}
	pg.Total = pg.Total.Round4()
	for u, g := range pg.ByUnderlying {
		pg.ByUnderlying[u] = g.Round4()
	}

	s.mu.Lock()
	s.userGreeks[userID] = pg
	s.mu.Unlock()
	return pg
}

// PortfolioGreeksFor returns the cached per-user aggregate, if present.
func (s *Service) PortfolioGreeksFor(userID string) (*model.PortfolioGreeks, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pg, ok := s.userGreeks[userID]
	return pg, ok
}
