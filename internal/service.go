package internal

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DatabaseConnection loads a portfolio from the backing store.
type DatabaseConnection interface {
	LoadPortfolio(ctx context.Context, portfolioID string) (*Portfolio, error)
}

// PortfolioService serves portfolios from the cache, loading them from the
// database on first access, and derives metrics from them.
type PortfolioService struct {
	db    DatabaseConnection
	cache *Cache
	group singleflight.Group
	now   func() time.Time
	log   zerolog.Logger
}

func NewPortfolioService(db DatabaseConnection, cache *Cache, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		db:    db,
		cache: cache,
		now:   time.Now,
		log:   log.With().Str("component", "portfolio_service").Logger(),
	}
}

// SetClock replaces the clock used to stamp metrics.
func (s *PortfolioService) SetClock(now func() time.Time) {
	s.now = now
}

// GetPortfolio returns the cached portfolio or loads and caches it. Concurrent
// misses for the same ID share one load. Failed loads are not cached.
//
// The shared load is detached from any single caller's cancellation; a caller
// whose ctx ends stops waiting without failing the others.
func (s *PortfolioService) GetPortfolio(ctx context.Context, portfolioID string) (*Portfolio, error) {
	if portfolioID == "" {
		return nil, &PortfolioRetrievalError{PortfolioID: portfolioID, Err: ErrEmptyPortfolioID}
	}
	if p, ok := s.cache.Get(portfolioID); ok {
		return p, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(portfolioID, func() (interface{}, error) {
		return s.loadOnce(loadCtx, portfolioID)
	})

	select {
	case <-ctx.Done():
		return nil, &PortfolioRetrievalError{PortfolioID: portfolioID, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			s.log.Warn().Err(res.Err).Str("portfolio_id", portfolioID).Bool("shared", res.Shared).Msg("portfolio load failed")
			return nil, &PortfolioRetrievalError{PortfolioID: portfolioID, Err: res.Err}
		}
		return res.Val.(*Portfolio), nil
	}
}

// loadOnce runs inside the flight. A flight that finished between the
// caller's miss and DoChan has already filled the cache.
func (s *PortfolioService) loadOnce(ctx context.Context, portfolioID string) (*Portfolio, error) {
	if p, ok := s.cache.Get(portfolioID); ok {
		return p, nil
	}
	p, err := s.db.LoadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPortfolioNotFound
	}
	s.cache.Set(portfolioID, p)
	s.log.Debug().
		Str("portfolio_id", portfolioID).
		Int("positions", len(p.Positions)).
		Msg("portfolio loaded into cache")
	return p, nil
}

// CalculatePerformance computes fresh P&L metrics for the portfolio.
func (s *PortfolioService) CalculatePerformance(ctx context.Context, portfolioID string) (*PerformanceMetrics, error) {
	p, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	m := ComputePerformance(p, s.now())
	if !m.PnLPercentage.Defined {
		s.log.Debug().Str("portfolio_id", portfolioID).Msg("zero total cost, pnl percentage undefined")
	}
	return &m, nil
}

// CalculateRisk computes a one-day VaR assessment for the portfolio.
func (s *PortfolioService) CalculateRisk(ctx context.Context, portfolioID string) (*RiskAssessment, error) {
	p, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	r := AssessRisk(p, s.now())
	return &r, nil
}

// CachedCount reports the number of cached portfolios.
func (s *PortfolioService) CachedCount() int {
	return s.cache.Len()
}
