package storage

import (
	"context"

	"solana-sniper/internal/domain"
)

// TradeClose carries the terminal fields applied when a trade closes.
type TradeClose struct {
	ExitPriceUSD float64
	ExitSig      string
	PnLPercent   float64
	Trigger      string
	ClosedAt     int64 // Unix timestamp (ms)
}

// TokenStore provides access to discovered token storage.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if the mint exists.
	Insert(ctx context.Context, t *domain.TokenRecord) error

	// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenRecord, error)

	// SetStatus updates the pipeline status of a token. Returns ErrNotFound if not exists.
	SetStatus(ctx context.Context, mint string, status domain.TokenStatus) error

	// SetRiskScore records the phase-2 score for a token. Returns ErrNotFound if not exists.
	SetRiskScore(ctx context.Context, mint string, score float64) error

	// GetByTimeRange retrieves tokens discovered within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TokenRecord, error)
}

// TradeStore provides access to trade storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByMint retrieves all trades for a mint, ordered by opened_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error)

	// GetOpen retrieves all open trades for one execution mode,
	// ordered by opened_at ASC.
	GetOpen(ctx context.Context, simulated bool) ([]*domain.TradeRecord, error)

	// SetStatus updates the status of an open trade. Returns ErrNotFound if not exists.
	SetStatus(ctx context.Context, tradeID string, status domain.TradeStatus) error

	// SetEntry replaces the estimated entry price and token amount with
	// values observed on chain. Returns ErrNotFound if not exists.
	SetEntry(ctx context.Context, tradeID string, entryPriceUSD, tokenAmount float64) error

	// Close transitions a trade to CLOSED and records the exit fields.
	// Returns ErrNotFound if not exists.
	Close(ctx context.Context, tradeID string, c TradeClose) error
}

// LiquiditySnapshotStore provides access to liquidity snapshot storage.
type LiquiditySnapshotStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if (mint, timestamp) exists.
	Insert(ctx context.Context, s *domain.LiquiditySnapshot) error

	// GetByMint retrieves all snapshots for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.LiquiditySnapshot, error)

	// GetLatest retrieves the most recent snapshot for a mint. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, mint string) (*domain.LiquiditySnapshot, error)
}

// VolumeSnapshotStore provides access to volume snapshot storage.
type VolumeSnapshotStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if (mint, window_sec, timestamp) exists.
	Insert(ctx context.Context, s *domain.VolumeSnapshot) error

	// GetByMint retrieves all snapshots for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.VolumeSnapshot, error)
}

// SafetyReportStore provides access to phase-2 safety report storage.
type SafetyReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if (mint, checked_at) exists.
	Insert(ctx context.Context, r *domain.SafetyReport) error

	// GetLatest retrieves the most recent report for a mint. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, mint string) (*domain.SafetyReport, error)
}

// PriceTrackStore provides access to position tracking telemetry.
// Points are high-volume and append-only, backed by ClickHouse.
type PriceTrackStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (mint, timestamp).
	InsertBulk(ctx context.Context, points []*domain.PriceTrackPoint) error

	// GetByMint retrieves points for a mint within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string, start, end int64) ([]*domain.PriceTrackPoint, error)
}
