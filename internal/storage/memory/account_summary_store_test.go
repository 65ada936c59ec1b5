package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
)

func TestAccountSummaryStore_Latest(t *testing.T) {
	store := NewAccountSummaryStore()
	ctx := context.Background()

	if _, err := store.Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	older := &domain.AccountSummary{AccountValue: 9000, Timestamp: posBase}
	newer := &domain.AccountSummary{AccountValue: 10000, Timestamp: posBase.Add(time.Minute)}
	// Insert out of order to make sure Latest goes by timestamp,
	// not insertion order.
	if err := store.Append(ctx, newer); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, older); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.AccountValue != 10000 {
		t.Errorf("expected newest summary, got value %f", got.AccountValue)
	}
}

func TestAccountSummaryStore_InvalidInput(t *testing.T) {
	store := NewAccountSummaryStore()
	err := store.Append(context.Background(), nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
