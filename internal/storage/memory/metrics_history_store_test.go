package memory

import (
	"context"
	"testing"
	"time"

	"perp-risk-monitor/internal/domain"
)

func TestMetricsHistoryStore_AppendAndRange(t *testing.T) {
	store := NewMetricsHistoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		point := &domain.MetricsPoint{
			Timestamp:    posBase.Add(time.Duration(i) * time.Minute),
			AccountValue: float64(10000 + i),
		}
		if err := store.Append(ctx, point); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.GetByTimeRange(ctx, posBase, posBase.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].AccountValue != 10000 || got[1].AccountValue != 10001 {
		t.Errorf("wrong ordering or values: %f, %f", got[0].AccountValue, got[1].AccountValue)
	}
}

func TestMetricsHistoryStore_EmptyRange(t *testing.T) {
	store := NewMetricsHistoryStore()
	got, err := store.GetByTimeRange(context.Background(), posBase, posBase.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d points", len(got))
	}
}
