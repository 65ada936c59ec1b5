// Package memory provides in-memory store implementations used by
// tests and by the monitor when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// PositionHistoryStore is an in-memory implementation of
// storage.PositionHistoryStore.
type PositionHistoryStore struct {
	mu   sync.RWMutex
	rows []*domain.Position
}

// NewPositionHistoryStore creates a new in-memory position history store.
func NewPositionHistoryStore() *PositionHistoryStore {
	return &PositionHistoryStore{}
}

// Compile-time interface check.
var _ storage.PositionHistoryStore = (*PositionHistoryStore)(nil)

// Append adds one poll's snapshot rows.
func (s *PositionHistoryStore) Append(_ context.Context, rows []*domain.Position) error {
	for _, r := range rows {
		if r == nil || r.Coin == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		copied := *r
		s.rows = append(s.rows, &copied)
	}
	return nil
}

// GetByTimeRange retrieves rows within [start, end], ordered by
// timestamp ASC then coin ASC.
func (s *PositionHistoryStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Position
	for _, r := range s.rows {
		if inRange(r.Timestamp, start, end) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sortPositions(out)
	return out, nil
}

// GetByCoin retrieves one coin's rows within [start, end], ordered by
// timestamp ASC.
func (s *PositionHistoryStore) GetByCoin(_ context.Context, coin string, start, end time.Time) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Position
	for _, r := range s.rows {
		if r.Coin == coin && inRange(r.Timestamp, start, end) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sortPositions(out)
	return out, nil
}

// LatestBatch retrieves all rows sharing the newest snapshot timestamp.
func (s *PositionHistoryStore) LatestBatch(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rows) == 0 {
		return nil, storage.ErrNotFound
	}

	var newest time.Time
	for _, r := range s.rows {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}

	var out []*domain.Position
	for _, r := range s.rows {
		if r.Timestamp.Equal(newest) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sortPositions(out)
	return out, nil
}

func sortPositions(rows []*domain.Position) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].Coin < rows[j].Coin
	})
}

// inRange reports whether ts falls inside [start, end] inclusive.
func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
