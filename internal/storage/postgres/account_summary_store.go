package postgres

import (
	"context"
	"fmt"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

// AccountSummaryStore implements storage.AccountSummaryStore using
// PostgreSQL. One summary row exists per poll timestamp.
type AccountSummaryStore struct {
	pool *Pool
}

// NewAccountSummaryStore creates a new AccountSummaryStore.
func NewAccountSummaryStore(pool *Pool) *AccountSummaryStore {
	return &AccountSummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountSummaryStore = (*AccountSummaryStore)(nil)

// Append adds one poll's summary. Returns ErrDuplicateKey if a summary
// already exists at the same timestamp.
func (s *AccountSummaryStore) Append(ctx context.Context, summary *domain.AccountSummary) error {
	if summary == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO account_summaries (
			timestamp, account_value, total_position_value, total_margin_used,
			total_raw_usd, withdrawable, total_unrealized_pnl, account_leverage,
			position_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		summary.Timestamp,
		summary.AccountValue,
		summary.TotalPositionValue,
		summary.TotalMarginUsed,
		summary.TotalRawUSD,
		summary.Withdrawable,
		summary.TotalUnrealizedPnl,
		summary.AccountLeverage,
		summary.PositionCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert account summary: %w", err)
	}
	return nil
}

// Latest retrieves the newest summary by timestamp.
func (s *AccountSummaryStore) Latest(ctx context.Context) (*domain.AccountSummary, error) {
	query := `
		SELECT timestamp, account_value, total_position_value, total_margin_used,
			total_raw_usd, withdrawable, total_unrealized_pnl, account_leverage,
			position_count
		FROM account_summaries
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var summary domain.AccountSummary
	err := s.pool.QueryRow(ctx, query).Scan(
		&summary.Timestamp,
		&summary.AccountValue,
		&summary.TotalPositionValue,
		&summary.TotalMarginUsed,
		&summary.TotalRawUSD,
		&summary.Withdrawable,
		&summary.TotalUnrealizedPnl,
		&summary.AccountLeverage,
		&summary.PositionCount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest account summary: %w", err)
	}
	summary.Timestamp = summary.Timestamp.UTC()
	return &summary, nil
}
