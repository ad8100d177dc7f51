package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// VolumeSnapshotStore is an in-memory implementation of storage.VolumeSnapshotStore.
type VolumeSnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.VolumeSnapshot // keyed by mint
}

// NewVolumeSnapshotStore creates a new in-memory volume snapshot store.
func NewVolumeSnapshotStore() *VolumeSnapshotStore {
	return &VolumeSnapshotStore{
		data: make(map[string][]*domain.VolumeSnapshot),
	}
}

// Compile-time interface check.
var _ storage.VolumeSnapshotStore = (*VolumeSnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if (mint, window_sec, timestamp) exists.
func (s *VolumeSnapshotStore) Insert(_ context.Context, snap *domain.VolumeSnapshot) error {
	if snap == nil || snap.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data[snap.Mint] {
		if existing.WindowSec == snap.WindowSec && existing.Timestamp == snap.Timestamp {
			return storage.ErrDuplicateKey
		}
	}

	copy := *snap
	s.data[snap.Mint] = append(s.data[snap.Mint], &copy)
	return nil
}

// GetByMint retrieves all snapshots for a mint, ordered by timestamp ASC.
func (s *VolumeSnapshotStore) GetByMint(_ context.Context, mint string) ([]*domain.VolumeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.data[mint]
	result := make([]*domain.VolumeSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		copy := *snap
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}
