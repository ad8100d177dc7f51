package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PriceTrackStore is an in-memory implementation of storage.PriceTrackStore.
type PriceTrackStore struct {
	mu   sync.RWMutex
	data map[trackKey]*domain.PriceTrackPoint
}

type trackKey struct {
	mint      string
	timestamp int64
}

// NewPriceTrackStore creates a new in-memory price track store.
func NewPriceTrackStore() *PriceTrackStore {
	return &PriceTrackStore{
		data: make(map[trackKey]*domain.PriceTrackPoint),
	}
}

// Compile-time interface check.
var _ storage.PriceTrackStore = (*PriceTrackStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (mint, timestamp).
func (s *PriceTrackStore) InsertBulk(_ context.Context, points []*domain.PriceTrackPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[trackKey]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Mint == "" {
			return storage.ErrInvalidInput
		}

		k := trackKey{p.Mint, p.Timestamp}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		copy := *p
		s.data[trackKey{p.Mint, p.Timestamp}] = &copy
	}

	return nil
}

// GetByMint retrieves points for a mint within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *PriceTrackStore) GetByMint(_ context.Context, mint string, start, end int64) ([]*domain.PriceTrackPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceTrackPoint
	for k, p := range s.data {
		if k.mint == mint && p.Timestamp >= start && p.Timestamp <= end {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}
