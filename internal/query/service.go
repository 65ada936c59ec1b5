// Package query answers read requests over stored history: reconciled
// position timelines, account metrics, and realized PnL totals.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/reconcile"
	"perp-risk-monitor/internal/storage"
)

// Service exposes read-side operations over the history stores.
type Service struct {
	positions storage.PositionHistoryStore
	fills     storage.FillStore
	metrics   storage.MetricsHistoryStore
	now       func() time.Time
}

// NewService creates a query service over the given stores.
func NewService(positions storage.PositionHistoryStore, fills storage.FillStore, metrics storage.MetricsHistoryStore) *Service {
	return &Service{
		positions: positions,
		fills:     fills,
		metrics:   metrics,
		now:       time.Now,
	}
}

// GetPositionHistory returns raw snapshot rows from the trailing window.
func (s *Service) GetPositionHistory(ctx context.Context, window time.Duration) ([]*domain.Position, error) {
	w := reconcile.Last(window, s.now())
	rows, err := s.positions.GetByTimeRange(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("get position history: %w", err)
	}
	return rows, nil
}

// GetReconciledHistory returns the snapshot and fill streams merged
// onto a regular time grid for the trailing window.
func (s *Service) GetReconciledHistory(ctx context.Context, window, resolution time.Duration) ([]domain.HistoryPoint, error) {
	w := reconcile.Last(window, s.now())

	snapshots, err := s.positions.GetByTimeRange(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	fills, err := s.fills.GetByTimeRange(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	return reconcile.Reconcile(snapshots, fills, w, resolution), nil
}

// GetMetricsHistory returns account metric points from the trailing window.
func (s *Service) GetMetricsHistory(ctx context.Context, window time.Duration) ([]*domain.MetricsPoint, error) {
	w := reconcile.Last(window, s.now())
	points, err := s.metrics.GetByTimeRange(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("get metrics history: %w", err)
	}
	return points, nil
}

// GetTotalRealizedPnl sums realized PnL over the trailing window. The
// sum is exact and stable under repeated fill ingestion.
func (s *Service) GetTotalRealizedPnl(ctx context.Context, window time.Duration) (decimal.Decimal, error) {
	w := reconcile.Last(window, s.now())
	fills, err := s.fills.GetByTimeRange(ctx, w.Start, w.End)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get fills: %w", err)
	}
	return reconcile.TotalRealizedPnl(fills, w), nil
}

// GetOpenPositions returns the most recent snapshot batch, i.e. the
// positions open as of the last poll.
func (s *Service) GetOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	batch, err := s.positions.LatestBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	return batch, nil
}
