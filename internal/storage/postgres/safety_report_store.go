package postgres

import (
	"context"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// SafetyReportStore implements storage.SafetyReportStore using PostgreSQL.
type SafetyReportStore struct {
	pool *Pool
}

// NewSafetyReportStore creates a new SafetyReportStore.
func NewSafetyReportStore(pool *Pool) *SafetyReportStore {
	return &SafetyReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SafetyReportStore = (*SafetyReportStore)(nil)

// Insert adds a new report. Returns ErrDuplicateKey if (mint, checked_at) exists.
func (s *SafetyReportStore) Insert(ctx context.Context, r *domain.SafetyReport) error {
	query := `
		INSERT INTO safety_reports (
			mint, lock_score, holders_ok, holder_count, top_holder_pct,
			volume_grew, market_cap_ok, market_cap_usd, score, checked_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Mint, r.LockScore, r.HoldersOK, r.HolderCount, r.TopHolderPct,
		r.VolumeGrew, r.MarketCapOK, r.MarketCapUSD, r.Score, r.CheckedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert safety report: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent report for a mint. Returns ErrNotFound if none.
func (s *SafetyReportStore) GetLatest(ctx context.Context, mint string) (*domain.SafetyReport, error) {
	query := `
		SELECT
			mint, lock_score, holders_ok, holder_count, top_holder_pct,
			volume_grew, market_cap_ok, market_cap_usd, score, checked_at
		FROM safety_reports
		WHERE mint = $1
		ORDER BY checked_at DESC
		LIMIT 1
	`

	var r domain.SafetyReport
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&r.Mint, &r.LockScore, &r.HoldersOK, &r.HolderCount, &r.TopHolderPct,
		&r.VolumeGrew, &r.MarketCapOK, &r.MarketCapUSD, &r.Score, &r.CheckedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest safety report: %w", err)
	}
	return &r, nil
}
