package memory

import (
	"context"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// SafetyReportStore is an in-memory implementation of storage.SafetyReportStore.
type SafetyReportStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.SafetyReport // keyed by mint
}

// NewSafetyReportStore creates a new in-memory safety report store.
func NewSafetyReportStore() *SafetyReportStore {
	return &SafetyReportStore{
		data: make(map[string][]*domain.SafetyReport),
	}
}

// Compile-time interface check.
var _ storage.SafetyReportStore = (*SafetyReportStore)(nil)

// Insert adds a new report. Returns ErrDuplicateKey if (mint, checked_at) exists.
func (s *SafetyReportStore) Insert(_ context.Context, r *domain.SafetyReport) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data[r.Mint] {
		if existing.CheckedAt == r.CheckedAt {
			return storage.ErrDuplicateKey
		}
	}

	copy := *r
	s.data[r.Mint] = append(s.data[r.Mint], &copy)
	return nil
}

// GetLatest retrieves the most recent report for a mint. Returns ErrNotFound if none.
func (s *SafetyReportStore) GetLatest(_ context.Context, mint string) (*domain.SafetyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := s.data[mint]
	if len(reports) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := reports[0]
	for _, r := range reports[1:] {
		if r.CheckedAt > latest.CheckedAt {
			latest = r
		}
	}

	copy := *latest
	return &copy, nil
}
