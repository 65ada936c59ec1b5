package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"perp-risk-monitor/internal/exchange"
	"perp-risk-monitor/internal/observability"
)

func newTestMarketService(t *testing.T, client MarketClient, ttl time.Duration) *MarketService {
	t.Helper()
	return NewMarketService(client, zap.NewNop(), observability.NewMetrics(t.Name()), ttl)
}

type stubMarketClient struct {
	meta  *exchange.Meta
	ctxs  []exchange.AssetCtx
	err   error
	calls int
}

func (c *stubMarketClient) MetaAndAssetCtxs(context.Context) (*exchange.Meta, []exchange.AssetCtx, error) {
	c.calls++
	if c.err != nil {
		return nil, nil, c.err
	}
	return c.meta, c.ctxs, nil
}

func TestMarketService_CachesUpstream(t *testing.T) {
	client := &stubMarketClient{
		meta: &exchange.Meta{Universe: []exchange.UniverseEntry{{Name: "BTC", MaxLeverage: 50}}},
		ctxs: []exchange.AssetCtx{{MarkPx: "50100"}},
	}
	svc := newTestMarketService(t, client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		markets, err := svc.Markets(ctx)
		if err != nil {
			t.Fatalf("Markets failed: %v", err)
		}
		if len(markets) != 1 || markets[0].Symbol != "BTC" || markets[0].MarkPrice != 50100 {
			t.Fatalf("unexpected markets: %+v", markets)
		}
	}
	if client.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", client.calls)
	}
}

func TestMarketService_ErrorNotCached(t *testing.T) {
	client := &stubMarketClient{err: errors.New("exchange down")}
	svc := newTestMarketService(t, client, time.Hour)
	ctx := context.Background()

	if _, err := svc.Markets(ctx); err == nil {
		t.Fatal("expected error")
	}

	client.err = nil
	client.meta = &exchange.Meta{Universe: []exchange.UniverseEntry{{Name: "ETH"}}}
	markets, err := svc.Markets(ctx)
	if err != nil || len(markets) != 1 {
		t.Errorf("expected recovery after error, got %v %d", err, len(markets))
	}
}
