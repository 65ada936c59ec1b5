package clickhouse

import (
	"context"
	"fmt"
	"time"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// MetricsHistoryStore implements storage.MetricsHistoryStore using
// ClickHouse.
type MetricsHistoryStore struct {
	conn *Conn
}

// NewMetricsHistoryStore creates a new MetricsHistoryStore.
func NewMetricsHistoryStore(conn *Conn) *MetricsHistoryStore {
	return &MetricsHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricsHistoryStore = (*MetricsHistoryStore)(nil)

const metricsColumns = `
	timestamp, account_value, total_position_value, total_margin_used,
	free_margin, total_unrealized_pnl, account_leverage, total_exposure,
	exposure_to_equity_ratio, portfolio_heat, risk_adjusted_return,
	margin_utilization, concentration_score
`

// Append adds one poll's metrics point.
func (s *MetricsHistoryStore) Append(ctx context.Context, point *domain.MetricsPoint) error {
	if point == nil {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx,
		"INSERT INTO metrics_history ("+metricsColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		point.Timestamp, point.AccountValue, point.TotalPositionValue,
		point.TotalMarginUsed, point.FreeMargin, point.TotalUnrealizedPnl,
		point.AccountLeverage, point.TotalExposure, point.ExposureToEquityRatio,
		point.PortfolioHeat, point.RiskAdjustedReturn, point.MarginUtilization,
		point.ConcentrationScore,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *MetricsHistoryStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.MetricsPoint, error) {
	query := `
		SELECT ` + metricsColumns + `
		FROM metrics_history
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get metrics by time range: %w", err)
	}
	defer rows.Close()

	var out []*domain.MetricsPoint
	for rows.Next() {
		var p domain.MetricsPoint
		err := rows.Scan(
			&p.Timestamp, &p.AccountValue, &p.TotalPositionValue,
			&p.TotalMarginUsed, &p.FreeMargin, &p.TotalUnrealizedPnl,
			&p.AccountLeverage, &p.TotalExposure, &p.ExposureToEquityRatio,
			&p.PortfolioHeat, &p.RiskAdjustedReturn, &p.MarginUtilization,
			&p.ConcentrationScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metrics point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		out = append(out, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics points: %w", err)
	}
	return out, nil
}
