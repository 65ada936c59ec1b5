package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"perp-risk-monitor/internal/cache"
	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/exchange"
	"perp-risk-monitor/internal/observability"
)

// MarketClient is the slice of the exchange API the market service needs.
type MarketClient interface {
	MetaAndAssetCtxs(ctx context.Context) (*exchange.Meta, []exchange.AssetCtx, error)
}

// MarketService serves listed-market info, cached so that dashboard
// polling does not hammer the exchange.
type MarketService struct {
	client  MarketClient
	logger  *zap.Logger
	metrics *observability.Metrics
	cache   *cache.TTL[[]domain.MarketInfo]
}

// NewMarketService creates a market service with the given cache TTL.
func NewMarketService(client MarketClient, logger *zap.Logger, metrics *observability.Metrics, ttl time.Duration) *MarketService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MarketService{
		client:  client,
		logger:  logger,
		metrics: metrics,
		cache:   cache.NewTTL[[]domain.MarketInfo](ttl),
	}
}

// Markets returns all listed perp markets with pricing context.
// Garbled pricing fields are counted and logged, not swallowed.
func (s *MarketService) Markets(ctx context.Context) ([]domain.MarketInfo, error) {
	return s.cache.GetOrFill("markets", func() ([]domain.MarketInfo, error) {
		meta, ctxs, err := s.client.MetaAndAssetCtxs(ctx)
		if err != nil {
			return nil, err
		}
		markets, report := NormalizeMarkets(meta, ctxs)
		recordIngestReport(s.logger, s.metrics, report)
		return markets, nil
	})
}
