package memory

import (
	"context"
	"sync"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// AccountSummaryStore is an in-memory implementation of
// storage.AccountSummaryStore.
type AccountSummaryStore struct {
	mu   sync.RWMutex
	rows []*domain.AccountSummary
}

// NewAccountSummaryStore creates a new in-memory account summary store.
func NewAccountSummaryStore() *AccountSummaryStore {
	return &AccountSummaryStore{}
}

// Compile-time interface check.
var _ storage.AccountSummaryStore = (*AccountSummaryStore)(nil)

// Append adds one poll's account summary.
func (s *AccountSummaryStore) Append(_ context.Context, summary *domain.AccountSummary) error {
	if summary == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *summary
	s.rows = append(s.rows, &copied)
	return nil
}

// Latest retrieves the newest summary by timestamp.
func (s *AccountSummaryStore) Latest(_ context.Context) (*domain.AccountSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rows) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := s.rows[0]
	for _, r := range s.rows[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	copied := *latest
	return &copied, nil
}
