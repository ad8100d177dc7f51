package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	query := `
		INSERT INTO trades (
			trade_id, mint, status,
			entry_price_usd, exit_price_usd, token_amount, size_usd,
			entry_sig, exit_sig, pnl_percent, trigger_reason,
			opened_at, closed_at, simulated
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Mint, t.Status,
		t.EntryPriceUSD, t.ExitPriceUSD, t.TokenAmount, t.SizeUSD,
		t.EntrySig, t.ExitSig, t.PnLPercent, t.Trigger,
		t.OpenedAt, t.ClosedAt, t.Simulated,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx, selectTrades+` WHERE trade_id = $1`, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByMint retrieves all trades for a mint, ordered by opened_at ASC.
func (s *TradeStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, selectTrades+` WHERE mint = $1 ORDER BY opened_at ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("get trades by mint: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetOpen retrieves all open trades for one execution mode, ordered by opened_at ASC.
func (s *TradeStore) GetOpen(ctx context.Context, simulated bool) ([]*domain.TradeRecord, error) {
	query := selectTrades + `
		WHERE simulated = $1 AND status IN ($2, $3, $4, $5)
		ORDER BY opened_at ASC
	`

	rows, err := s.pool.Query(ctx, query, simulated,
		domain.TradeFinalized, domain.TradeSelling, domain.TradeSimulated, domain.TradeRecovered)
	if err != nil {
		return nil, fmt.Errorf("get open trades: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// SetStatus updates the status of an open trade. Returns ErrNotFound if not exists.
func (s *TradeStore) SetStatus(ctx context.Context, tradeID string, status domain.TradeStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE trades SET status = $2 WHERE trade_id = $1`, tradeID, status)
	if err != nil {
		return fmt.Errorf("set trade status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetEntry replaces the estimated entry price and token amount with
// values observed on chain. Returns ErrNotFound if not exists.
func (s *TradeStore) SetEntry(ctx context.Context, tradeID string, entryPriceUSD, tokenAmount float64) error {
	query := `UPDATE trades SET entry_price_usd = $2, token_amount = $3 WHERE trade_id = $1`

	tag, err := s.pool.Exec(ctx, query, tradeID, entryPriceUSD, tokenAmount)
	if err != nil {
		return fmt.Errorf("set trade entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close transitions a trade to CLOSED and records the exit fields.
// Returns ErrNotFound if not exists.
func (s *TradeStore) Close(ctx context.Context, tradeID string, c storage.TradeClose) error {
	query := `
		UPDATE trades SET
			status = $2,
			exit_price_usd = $3,
			exit_sig = $4,
			pnl_percent = $5,
			trigger_reason = $6,
			closed_at = $7
		WHERE trade_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, tradeID,
		domain.TradeClosed, c.ExitPriceUSD, c.ExitSig, c.PnLPercent, c.Trigger, c.ClosedAt)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const selectTrades = `
	SELECT
		trade_id, mint, status,
		entry_price_usd, exit_price_usd, token_amount, size_usd,
		entry_sig, exit_sig, pnl_percent, trigger_reason,
		opened_at, closed_at, simulated
	FROM trades
`

// scanTradeRecord scans a single trade row.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	err := row.Scan(
		&t.TradeID, &t.Mint, &t.Status,
		&t.EntryPriceUSD, &t.ExitPriceUSD, &t.TokenAmount, &t.SizeUSD,
		&t.EntrySig, &t.ExitSig, &t.PnLPercent, &t.Trigger,
		&t.OpenedAt, &t.ClosedAt, &t.Simulated,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var result []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
