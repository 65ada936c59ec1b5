package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// PositionHistoryStore implements storage.PositionHistoryStore using
// ClickHouse. Snapshots are append-only; MergeTree ordering by
// (timestamp, coin) makes the range and latest-batch queries cheap.
type PositionHistoryStore struct {
	conn *Conn
}

// NewPositionHistoryStore creates a new PositionHistoryStore.
func NewPositionHistoryStore(conn *Conn) *PositionHistoryStore {
	return &PositionHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PositionHistoryStore = (*PositionHistoryStore)(nil)

const positionColumns = `
	timestamp, coin, side, size, leverage, entry_price,
	liquidation_price, unrealized_pnl, realized_pnl, margin_used, is_open
`

// Append adds one poll's snapshot rows as a single batch.
func (s *PositionHistoryStore) Append(ctx context.Context, rows []*domain.Position) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r == nil || r.Coin == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx,
		"INSERT INTO position_history ("+positionColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Timestamp, r.Coin, string(r.Side), r.Size, r.Leverage,
			r.EntryPrice, r.LiquidationPrice, r.UnrealizedPnl,
			r.RealizedPnl, r.MarginUsed, r.IsOpen,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves rows within [start, end] (inclusive),
// ordered by timestamp ASC then coin ASC.
func (s *PositionHistoryStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position_history
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, coin ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get positions by time range: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetByCoin retrieves one coin's rows within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *PositionHistoryStore) GetByCoin(ctx context.Context, coin string, start, end time.Time) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position_history
		WHERE coin = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, coin, start, end)
	if err != nil {
		return nil, fmt.Errorf("get positions by coin: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// LatestBatch retrieves all rows sharing the newest snapshot timestamp.
func (s *PositionHistoryStore) LatestBatch(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position_history
		WHERE timestamp = (SELECT max(timestamp) FROM position_history)
		ORDER BY coin ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get latest batch: %w", err)
	}
	defer rows.Close()

	batch, err := scanPositions(rows)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, storage.ErrNotFound
	}
	return batch, nil
}

// scanPositions scans result rows into Position values.
func scanPositions(rows driver.Rows) ([]*domain.Position, error) {
	var out []*domain.Position

	for rows.Next() {
		var (
			p    domain.Position
			side string
		)
		err := rows.Scan(
			&p.Timestamp, &p.Coin, &side, &p.Size, &p.Leverage,
			&p.EntryPrice, &p.LiquidationPrice, &p.UnrealizedPnl,
			&p.RealizedPnl, &p.MarginUsed, &p.IsOpen,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.Side = domain.Side(side)
		p.Timestamp = p.Timestamp.UTC()
		out = append(out, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return out, nil
}
