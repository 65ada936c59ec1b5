package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Fill // keyed by fill_id
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{data: make(map[string]*domain.Fill)}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// Upsert inserts the fill unless its fill_id already exists.
func (s *FillStore) Upsert(_ context.Context, f *domain.Fill) error {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[f.FillID]; exists {
		return nil // immutable fact, duplicate dropped
	}
	copied := *f
	s.data[f.FillID] = &copied
	return nil
}

// UpsertBulk inserts all fills, silently skipping known fill_ids.
func (s *FillStore) UpsertBulk(_ context.Context, fills []*domain.Fill) error {
	for _, f := range fills {
		if f == nil || f.FillID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fills {
		if _, exists := s.data[f.FillID]; exists {
			continue
		}
		copied := *f
		s.data[f.FillID] = &copied
	}
	return nil
}

// GetByTimeRange retrieves fills within [start, end], ordered by
// timestamp ASC.
func (s *FillStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Fill
	for _, f := range s.data {
		if inRange(f.Timestamp, start, end) {
			copied := *f
			out = append(out, &copied)
		}
	}
	sortFills(out)
	return out, nil
}

// GetByCoin retrieves one coin's fills within [start, end], ordered by
// timestamp ASC.
func (s *FillStore) GetByCoin(_ context.Context, coin string, start, end time.Time) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Fill
	for _, f := range s.data {
		if f.Coin == coin && inRange(f.Timestamp, start, end) {
			copied := *f
			out = append(out, &copied)
		}
	}
	sortFills(out)
	return out, nil
}

func sortFills(fills []*domain.Fill) {
	sort.SliceStable(fills, func(i, j int) bool {
		if !fills[i].Timestamp.Equal(fills[j].Timestamp) {
			return fills[i].Timestamp.Before(fills[j].Timestamp)
		}
		return fills[i].FillID < fills[j].FillID
	})
}
