package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

func TestPriceTrackStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceTrackStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	points := []*domain.PriceTrackPoint{
		{Mint: "MintA", Timestamp: 1000, PriceUSD: 0.001, PeakUSD: 0.001, PnLPercent: 0},
		{Mint: "MintA", Timestamp: 2000, PriceUSD: 0.002, PeakUSD: 0.002, PnLPercent: 100},
	}

	err = store.InsertBulk(ctx, points)
	require.NoError(t, err)

	got, err := store.GetByMint(ctx, "MintA", 0, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, 0.001, got[0].PriceUSD)
	assert.Equal(t, int64(2000), got[1].Timestamp)
	assert.Equal(t, 100.0, got[1].PnLPercent)
}

func TestPriceTrackStore_InsertBulk_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceTrackStore(conn)
	ctx := context.Background()

	points := []*domain.PriceTrackPoint{
		{Mint: "MintA", Timestamp: 1000, PriceUSD: 0.001},
	}

	err := store.InsertBulk(ctx, points)
	require.NoError(t, err)

	err = store.InsertBulk(ctx, points)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPriceTrackStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceTrackStore(conn)
	ctx := context.Background()

	points := []*domain.PriceTrackPoint{
		{Mint: "MintA", Timestamp: 1000, PriceUSD: 0.001},
		{Mint: "MintA", Timestamp: 1000, PriceUSD: 0.002},
	}

	err := store.InsertBulk(ctx, points)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPriceTrackStore_GetByMint_Range(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceTrackStore(conn)
	ctx := context.Background()

	points := []*domain.PriceTrackPoint{
		{Mint: "MintA", Timestamp: 1000, PriceUSD: 0.001},
		{Mint: "MintA", Timestamp: 2000, PriceUSD: 0.002},
		{Mint: "MintA", Timestamp: 3000, PriceUSD: 0.003},
		{Mint: "MintB", Timestamp: 2000, PriceUSD: 9},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByMint(ctx, "MintA", 1500, 2500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2000), got[0].Timestamp)
	assert.Equal(t, 0.002, got[0].PriceUSD)
}
