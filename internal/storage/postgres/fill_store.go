package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// FillStore implements storage.FillStore using PostgreSQL. Fills are
// keyed by the exchange trade ID, so re-ingesting the same feed is a
// no-op rather than an error.
type FillStore struct {
	pool *Pool
}

// NewFillStore creates a new FillStore.
func NewFillStore(pool *Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

const insertFillQuery = `
	INSERT INTO fills (
		fill_id, order_id, coin, side, size, price, closed_pnl, timestamp
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (fill_id) DO NOTHING
`

// Upsert inserts a fill, silently keeping the existing row when the
// fill ID is already known.
func (s *FillStore) Upsert(ctx context.Context, fill *domain.Fill) error {
	if fill == nil || fill.FillID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertFillQuery,
		fill.FillID,
		fill.OrderID,
		fill.Coin,
		fill.Side,
		fill.Size,
		fill.Price,
		fill.ClosedPnl,
		fill.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert fill: %w", err)
	}
	return nil
}

// UpsertBulk inserts multiple fills atomically, skipping known IDs.
func (s *FillStore) UpsertBulk(ctx context.Context, fills []*domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	for _, f := range fills {
		if f == nil || f.FillID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range fills {
		_, err := tx.Exec(ctx, insertFillQuery,
			f.FillID,
			f.OrderID,
			f.Coin,
			f.Side,
			f.Size,
			f.Price,
			f.ClosedPnl,
			f.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("upsert fill in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves fills within [start, end] (inclusive),
// ordered by timestamp ASC then fill ID ASC.
func (s *FillStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Fill, error) {
	query := `
		SELECT fill_id, order_id, coin, side, size, price, closed_pnl, timestamp
		FROM fills
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC, fill_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get fills by time range: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// GetByCoin retrieves one coin's fills within [start, end] (inclusive),
// ordered by timestamp ASC then fill ID ASC.
func (s *FillStore) GetByCoin(ctx context.Context, coin string, start, end time.Time) ([]*domain.Fill, error) {
	query := `
		SELECT fill_id, order_id, coin, side, size, price, closed_pnl, timestamp
		FROM fills
		WHERE coin = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC, fill_id ASC
	`

	rows, err := s.pool.Query(ctx, query, coin, start, end)
	if err != nil {
		return nil, fmt.Errorf("get fills by coin: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// scanFills scans multiple rows into a slice of Fill.
func scanFills(rows pgx.Rows) ([]*domain.Fill, error) {
	var fills []*domain.Fill

	for rows.Next() {
		var f domain.Fill
		err := rows.Scan(
			&f.FillID,
			&f.OrderID,
			&f.Coin,
			&f.Side,
			&f.Size,
			&f.Price,
			&f.ClosedPnl,
			&f.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.Timestamp = f.Timestamp.UTC()
		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fills: %w", err)
	}
	return fills, nil
}
