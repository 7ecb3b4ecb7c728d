package prices

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/domain"
	"github.com/wilqq-the/stronghodl/pkg/formulas"
)

// readCacheTTL is how long a current-price read is served from memory
// before hitting the store again.
const readCacheTTL = 30 * time.Second

// Service provides cached price reads and series analytics
type Service struct {
	repo *Repository
	log  zerolog.Logger

	mu       sync.RWMutex
	cached   *domain.CurrentPrice
	cachedAt time.Time
}

// NewService creates a new price service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "prices").Logger(),
	}
}

// GetCurrentPrice returns the stored current price, served from a short-lived
// memory cache. Returns nil when no price has been stored yet.
func (s *Service) GetCurrentPrice() (*domain.CurrentPrice, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.cachedAt) < readCacheTTL {
		p := *s.cached
		s.mu.RUnlock()
		return &p, nil
	}
	s.mu.RUnlock()

	p, err := s.repo.GetCurrentPrice()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	s.mu.Lock()
	s.cached = p
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return p, nil
}

// InvalidateCache drops the memory cache so the next read sees a fresh
// store write. Called by the scheduler after price upserts.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Analytics summarizes the stored daily close series
type Analytics struct {
	Days                 int      `json:"days"`
	SMA7                 *float64 `json:"sma_7,omitempty"`
	SMA30                *float64 `json:"sma_30,omitempty"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	High                 float64  `json:"high"`
	Low                  float64  `json:"low"`
}

// GetAnalytics computes moving averages and volatility over the last N days
func (s *Service) GetAnalytics(days int) (*Analytics, error) {
	if days <= 0 {
		days = 30
	}

	series, err := s.repo.ListDaily(days)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily series: %w", err)
	}
	if len(series) == 0 {
		return &Analytics{Days: days}, nil
	}

	// ListDaily returns newest first; returns math needs chronological order.
	closes := make([]float64, len(series))
	high := series[0].High
	low := series[0].Low
	for i, p := range series {
		closes[len(series)-1-i] = p.Close
		if p.High > high {
			high = p.High
		}
		if p.Low < low {
			low = p.Low
		}
	}

	return &Analytics{
		Days:                 days,
		SMA7:                 formulas.SMA(closes, 7),
		SMA30:                formulas.SMA(closes, 30),
		AnnualizedVolatility: formulas.AnnualizedVolatility(formulas.CalculateReturns(closes)),
		High:                 high,
		Low:                  low,
	}, nil
}
