package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.TokenRecord) error {
	query := `
		INSERT INTO tokens (
			token_id, mint, pool, dex,
			first_seen, discovered_at,
			liquidity_usd, price_usd, market_cap_usd, risk_score, status
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TokenID, t.Mint, t.Pool, t.Dex,
		t.FirstSeen, t.DiscoveredAt,
		t.LiquidityUSD, t.PriceUSD, t.MarketCapUSD, t.RiskScore, t.Status,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.TokenRecord, error) {
	query := `
		SELECT
			token_id, mint, pool, dex,
			first_seen, discovered_at,
			liquidity_usd, price_usd, market_cap_usd, risk_score, status
		FROM tokens
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	t, err := scanTokenRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// SetStatus updates the pipeline status of a token. Returns ErrNotFound if not exists.
func (s *TokenStore) SetStatus(ctx context.Context, mint string, status domain.TokenStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tokens SET status = $2 WHERE mint = $1`, mint, status)
	if err != nil {
		return fmt.Errorf("set token status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetRiskScore records the phase-2 score for a token. Returns ErrNotFound if not exists.
func (s *TokenStore) SetRiskScore(ctx context.Context, mint string, score float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tokens SET risk_score = $2 WHERE mint = $1`, mint, score)
	if err != nil {
		return fmt.Errorf("set token risk score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByTimeRange retrieves tokens discovered within [start, end] (inclusive).
func (s *TokenStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TokenRecord, error) {
	query := `
		SELECT
			token_id, mint, pool, dex,
			first_seen, discovered_at,
			liquidity_usd, price_usd, market_cap_usd, risk_score, status
		FROM tokens
		WHERE discovered_at >= $1 AND discovered_at <= $2
		ORDER BY discovered_at ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get tokens by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.TokenRecord
	for rows.Next() {
		t, err := scanTokenRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// scanTokenRecord scans a single token row.
func scanTokenRecord(row pgx.Row) (*domain.TokenRecord, error) {
	var t domain.TokenRecord
	err := row.Scan(
		&t.TokenID, &t.Mint, &t.Pool, &t.Dex,
		&t.FirstSeen, &t.DiscoveredAt,
		&t.LiquidityUSD, &t.PriceUSD, &t.MarketCapUSD, &t.RiskScore, &t.Status,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
