package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// LiquiditySnapshotStore is an in-memory implementation of storage.LiquiditySnapshotStore.
type LiquiditySnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.LiquiditySnapshot // keyed by mint
}

// NewLiquiditySnapshotStore creates a new in-memory liquidity snapshot store.
func NewLiquiditySnapshotStore() *LiquiditySnapshotStore {
	return &LiquiditySnapshotStore{
		data: make(map[string][]*domain.LiquiditySnapshot),
	}
}

// Compile-time interface check.
var _ storage.LiquiditySnapshotStore = (*LiquiditySnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if (mint, timestamp) exists.
func (s *LiquiditySnapshotStore) Insert(_ context.Context, snap *domain.LiquiditySnapshot) error {
	if snap == nil || snap.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data[snap.Mint] {
		if existing.Timestamp == snap.Timestamp {
			return storage.ErrDuplicateKey
		}
	}

	copy := *snap
	s.data[snap.Mint] = append(s.data[snap.Mint], &copy)
	return nil
}

// GetByMint retrieves all snapshots for a mint, ordered by timestamp ASC.
func (s *LiquiditySnapshotStore) GetByMint(_ context.Context, mint string) ([]*domain.LiquiditySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.data[mint]
	result := make([]*domain.LiquiditySnapshot, 0, len(snaps))
	for _, snap := range snaps {
		copy := *snap
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// GetLatest retrieves the most recent snapshot for a mint. Returns ErrNotFound if none.
func (s *LiquiditySnapshotStore) GetLatest(_ context.Context, mint string) (*domain.LiquiditySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.data[mint]
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.Timestamp > latest.Timestamp {
			latest = snap
		}
	}

	copy := *latest
	return &copy, nil
}
