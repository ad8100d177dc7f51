package memory

import (
	"context"
	"errors"
	"testing"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

func TestSafetyReportStore_InsertAndGetLatest(t *testing.T) {
	store := NewSafetyReportStore()
	ctx := context.Background()

	reports := []*domain.SafetyReport{
		{Mint: "M1", Score: 2, CheckedAt: 1000},
		{Mint: "M1", Score: 4, CheckedAt: 3000},
		{Mint: "M1", Score: 3, CheckedAt: 2000},
	}
	for _, r := range reports {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	latest, err := store.GetLatest(ctx, "M1")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.CheckedAt != 3000 || latest.Score != 4 {
		t.Errorf("Expected latest report at 3000 with score 4, got %d / %f", latest.CheckedAt, latest.Score)
	}
}

func TestSafetyReportStore_DuplicateKey(t *testing.T) {
	store := NewSafetyReportStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.SafetyReport{Mint: "M1", CheckedAt: 1000}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, &domain.SafetyReport{Mint: "M1", CheckedAt: 1000})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSafetyReportStore_NotFound(t *testing.T) {
	store := NewSafetyReportStore()
	ctx := context.Background()

	_, err := store.GetLatest(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
