package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// MetricsHistoryStore is an in-memory implementation of
// storage.MetricsHistoryStore.
type MetricsHistoryStore struct {
	mu   sync.RWMutex
	rows []*domain.MetricsPoint
}

// NewMetricsHistoryStore creates a new in-memory metrics history store.
func NewMetricsHistoryStore() *MetricsHistoryStore {
	return &MetricsHistoryStore{}
}

// Compile-time interface check.
var _ storage.MetricsHistoryStore = (*MetricsHistoryStore)(nil)

// Append adds one poll's metrics row.
func (s *MetricsHistoryStore) Append(_ context.Context, p *domain.MetricsPoint) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.rows = append(s.rows, &copied)
	return nil
}

// GetByTimeRange retrieves rows within [start, end], ordered by
// timestamp ASC.
func (s *MetricsHistoryStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.MetricsPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.MetricsPoint
	for _, r := range s.rows {
		if inRange(r.Timestamp, start, end) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
