package clickhouse

import (
	"context"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PriceTrackStore implements storage.PriceTrackStore using ClickHouse.
type PriceTrackStore struct {
	conn *Conn
}

// NewPriceTrackStore creates a new PriceTrackStore.
func NewPriceTrackStore(conn *Conn) *PriceTrackStore {
	return &PriceTrackStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTrackStore = (*PriceTrackStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (mint, timestamp).
func (s *PriceTrackStore) InsertBulk(ctx context.Context, points []*domain.PriceTrackPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		mint      string
		timestamp int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.Mint == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.Mint, p.Timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.Mint, p.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_track (
			mint, ts, price_usd, peak_usd, pnl_percent
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Mint, uint64(p.Timestamp),
			p.PriceUSD, p.PeakUSD, p.PnLPercent,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves points for a mint within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *PriceTrackStore) GetByMint(ctx context.Context, mint string, start, end int64) ([]*domain.PriceTrackPoint, error) {
	query := `
		SELECT mint, ts, price_usd, peak_usd, pnl_percent
		FROM price_track
		WHERE mint = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query price track: %w", err)
	}
	defer rows.Close()

	var result []*domain.PriceTrackPoint
	for rows.Next() {
		var (
			p  domain.PriceTrackPoint
			ts uint64
		)
		if err := rows.Scan(&p.Mint, &ts, &p.PriceUSD, &p.PeakUSD, &p.PnLPercent); err != nil {
			return nil, fmt.Errorf("scan price track point: %w", err)
		}
		p.Timestamp = int64(ts)
		result = append(result, &p)
	}
	return result, rows.Err()
}

func (s *PriceTrackStore) exists(ctx context.Context, mint string, timestamp int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM price_track WHERE mint = ? AND ts = ?`,
		mint, uint64(timestamp),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
