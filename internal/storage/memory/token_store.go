package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenRecord // keyed by mint
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.TokenRecord),
	}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.TokenRecord) error {
	if t == nil || t.Mint == "" || t.TokenID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.Mint] = &copy
	return nil
}

// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// SetStatus updates the pipeline status of a token. Returns ErrNotFound if not exists.
func (s *TokenStore) SetStatus(_ context.Context, mint string, status domain.TokenStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[mint]
	if !exists {
		return storage.ErrNotFound
	}

	t.Status = status
	return nil
}

// SetRiskScore records the phase-2 score for a token. Returns ErrNotFound if not exists.
func (s *TokenStore) SetRiskScore(_ context.Context, mint string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[mint]
	if !exists {
		return storage.ErrNotFound
	}

	t.RiskScore = score
	return nil
}

// GetByTimeRange retrieves tokens discovered within [start, end] (inclusive).
func (s *TokenStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenRecord
	for _, t := range s.data {
		if t.DiscoveredAt >= start && t.DiscoveredAt <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DiscoveredAt < result[j].DiscoveredAt
	})

	return result, nil
}
