package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// LiquiditySnapshotStore implements storage.LiquiditySnapshotStore using PostgreSQL.
type LiquiditySnapshotStore struct {
	pool *Pool
}

// NewLiquiditySnapshotStore creates a new LiquiditySnapshotStore.
func NewLiquiditySnapshotStore(pool *Pool) *LiquiditySnapshotStore {
	return &LiquiditySnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquiditySnapshotStore = (*LiquiditySnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if (mint, timestamp) exists.
func (s *LiquiditySnapshotStore) Insert(ctx context.Context, snap *domain.LiquiditySnapshot) error {
	query := `
		INSERT INTO liquidity_snapshots (
			mint, pool, dex,
			sol_usd, usdc_usd, usdt_usd, usd1_usd, other_usd,
			token_reserve, token_decimals, price_usd, token_side_usd, total_usd,
			ts
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14
		)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Mint, snap.Pool, snap.Dex,
		snap.SolUSD, snap.UsdcUSD, snap.UsdtUSD, snap.Usd1USD, snap.OtherUSD,
		snap.TokenReserve, snap.TokenDecimals, snap.PriceUSD, snap.TokenSideUSD, snap.TotalUSD,
		snap.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert liquidity snapshot: %w", err)
	}
	return nil
}

// GetByMint retrieves all snapshots for a mint, ordered by timestamp ASC.
func (s *LiquiditySnapshotStore) GetByMint(ctx context.Context, mint string) ([]*domain.LiquiditySnapshot, error) {
	rows, err := s.pool.Query(ctx, selectLiquiditySnapshots+` WHERE mint = $1 ORDER BY ts ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("get liquidity snapshots by mint: %w", err)
	}
	defer rows.Close()

	var result []*domain.LiquiditySnapshot
	for rows.Next() {
		snap, err := scanLiquiditySnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan liquidity snapshot: %w", err)
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}

// GetLatest retrieves the most recent snapshot for a mint. Returns ErrNotFound if none.
func (s *LiquiditySnapshotStore) GetLatest(ctx context.Context, mint string) (*domain.LiquiditySnapshot, error) {
	row := s.pool.QueryRow(ctx, selectLiquiditySnapshots+` WHERE mint = $1 ORDER BY ts DESC LIMIT 1`, mint)
	snap, err := scanLiquiditySnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest liquidity snapshot: %w", err)
	}
	return snap, nil
}

const selectLiquiditySnapshots = `
	SELECT
		mint, pool, dex,
		sol_usd, usdc_usd, usdt_usd, usd1_usd, other_usd,
		token_reserve, token_decimals, price_usd, token_side_usd, total_usd,
		ts
	FROM liquidity_snapshots
`

func scanLiquiditySnapshot(row pgx.Row) (*domain.LiquiditySnapshot, error) {
	var snap domain.LiquiditySnapshot
	err := row.Scan(
		&snap.Mint, &snap.Pool, &snap.Dex,
		&snap.SolUSD, &snap.UsdcUSD, &snap.UsdtUSD, &snap.Usd1USD, &snap.OtherUSD,
		&snap.TokenReserve, &snap.TokenDecimals, &snap.PriceUSD, &snap.TokenSideUSD, &snap.TotalUSD,
		&snap.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
