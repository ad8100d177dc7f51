package postgres

import (
	"context"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// VolumeSnapshotStore implements storage.VolumeSnapshotStore using PostgreSQL.
type VolumeSnapshotStore struct {
	pool *Pool
}

// NewVolumeSnapshotStore creates a new VolumeSnapshotStore.
func NewVolumeSnapshotStore(pool *Pool) *VolumeSnapshotStore {
	return &VolumeSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VolumeSnapshotStore = (*VolumeSnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if (mint, window_sec, timestamp) exists.
func (s *VolumeSnapshotStore) Insert(ctx context.Context, snap *domain.VolumeSnapshot) error {
	query := `
		INSERT INTO volume_snapshots (
			mint, window_sec, buy_usd, sell_usd, total_usd, delta_usd, ts
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Mint, snap.WindowSec, snap.BuyUSD, snap.SellUSD, snap.TotalUSD, snap.DeltaUSD, snap.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert volume snapshot: %w", err)
	}
	return nil
}

// GetByMint retrieves all snapshots for a mint, ordered by timestamp ASC.
func (s *VolumeSnapshotStore) GetByMint(ctx context.Context, mint string) ([]*domain.VolumeSnapshot, error) {
	query := `
		SELECT mint, window_sec, buy_usd, sell_usd, total_usd, delta_usd, ts
		FROM volume_snapshots
		WHERE mint = $1
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get volume snapshots by mint: %w", err)
	}
	defer rows.Close()

	var result []*domain.VolumeSnapshot
	for rows.Next() {
		var snap domain.VolumeSnapshot
		err := rows.Scan(
			&snap.Mint, &snap.WindowSec, &snap.BuyUSD, &snap.SellUSD, &snap.TotalUSD, &snap.DeltaUSD, &snap.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan volume snapshot: %w", err)
		}
		result = append(result, &snap)
	}
	return result, rows.Err()
}
