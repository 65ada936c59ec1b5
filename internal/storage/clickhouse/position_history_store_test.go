package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

func testPosition(coin string, ts time.Time) *domain.Position {
	return &domain.Position{
		Coin:             coin,
		Side:             domain.SideLong,
		Size:             0.5,
		Leverage:         10,
		EntryPrice:       50000,
		LiquidationPrice: 45000,
		UnrealizedPnl:    -200,
		MarginUsed:       2500,
		Timestamp:        ts,
		IsOpen:           true,
	}
}

func TestPositionHistoryStore_AppendAndGetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionHistoryStore(conn)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, []*domain.Position{
		testPosition("ETH", ts),
		testPosition("BTC", ts),
		testPosition("BTC", ts.Add(time.Minute)),
	}))

	rows, err := store.GetByTimeRange(ctx, ts, ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// timestamp ASC then coin ASC
	assert.Equal(t, "BTC", rows[0].Coin)
	assert.Equal(t, "ETH", rows[1].Coin)
	assert.True(t, rows[2].Timestamp.Equal(ts.Add(time.Minute)))

	got := rows[0]
	assert.Equal(t, domain.SideLong, got.Side)
	assert.Equal(t, 0.5, got.Size)
	assert.Equal(t, 45000.0, got.LiquidationPrice)
	assert.True(t, got.IsOpen)
}

func TestPositionHistoryStore_GetByCoin(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionHistoryStore(conn)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, []*domain.Position{
		testPosition("BTC", ts),
		testPosition("ETH", ts),
		testPosition("BTC", ts.Add(time.Minute)),
	}))

	rows, err := store.GetByCoin(ctx, "BTC", ts, ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Timestamp.Before(rows[1].Timestamp))
}

func TestPositionHistoryStore_LatestBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionHistoryStore(conn)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.LatestBatch(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Append(ctx, []*domain.Position{
		testPosition("BTC", ts),
		testPosition("ETH", ts),
	}))
	require.NoError(t, store.Append(ctx, []*domain.Position{
		testPosition("BTC", ts.Add(time.Minute)),
	}))

	batch, err := store.LatestBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "BTC", batch[0].Coin)
	assert.True(t, batch[0].Timestamp.Equal(ts.Add(time.Minute)))
}
