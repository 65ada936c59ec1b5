package storage

import (
	"context"
	"time"

	"perp-risk-monitor/internal/domain"
)

// PositionHistoryStore is the append-only store of raw position
// snapshot rows, one row per coin per poll. Rows are never updated:
// open/closed state is derived at read time from the newest batch, so
// no retroactive mutation (and no write race) exists.
type PositionHistoryStore interface {
	// Append adds one poll's snapshot rows.
	Append(ctx context.Context, rows []*domain.Position) error

	// GetByTimeRange retrieves rows within [start, end], ordered by
	// timestamp ASC then coin ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Position, error)

	// GetByCoin retrieves one coin's rows within [start, end], ordered
	// by timestamp ASC.
	GetByCoin(ctx context.Context, coin string, start, end time.Time) ([]*domain.Position, error)

	// LatestBatch retrieves all rows sharing the newest snapshot
	// timestamp. Returns ErrNotFound when the store is empty.
	LatestBatch(ctx context.Context) ([]*domain.Position, error)
}

// FillStore persists trade executions keyed by fill_id. Upserts are
// idempotent: re-submitting an existing fill_id is a no-op, never a
// double count, which makes the ingestion path safe under
// at-least-once redelivery.
type FillStore interface {
	// Upsert inserts the fill unless its fill_id already exists.
	Upsert(ctx context.Context, f *domain.Fill) error

	// UpsertBulk inserts all fills, silently skipping known fill_ids.
	UpsertBulk(ctx context.Context, fills []*domain.Fill) error

	// GetByTimeRange retrieves fills within [start, end], ordered by
	// timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Fill, error)

	// GetByCoin retrieves one coin's fills within [start, end], ordered
	// by timestamp ASC.
	GetByCoin(ctx context.Context, coin string, start, end time.Time) ([]*domain.Fill, error)
}

// MetricsHistoryStore is the append-only store of per-poll portfolio
// risk rows.
type MetricsHistoryStore interface {
	// Append adds one poll's metrics row.
	Append(ctx context.Context, p *domain.MetricsPoint) error

	// GetByTimeRange retrieves rows within [start, end], ordered by
	// timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.MetricsPoint, error)
}

// AccountSummaryStore is the append-only store of per-poll account
// summary rows.
type AccountSummaryStore interface {
	// Append adds one poll's account summary.
	Append(ctx context.Context, s *domain.AccountSummary) error

	// Latest retrieves the newest summary. Returns ErrNotFound when the
	// store is empty.
	Latest(ctx context.Context) (*domain.AccountSummary, error)
}
