// Package liquidity detects the pool behind a new token and prices its
// reserves in USD.
package liquidity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// Stablecoin mints priced at one dollar.
const (
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERc1eZqDum62vD9BTezVXNid1QH2G2Vw5B"
	USD1Mint = "USD1ttGY1N17NEEHLmELoaybftRBUSErhqYiQzvEmuB"
)

// SOLPriceSource provides the native coin USD price. Satisfied by
// *swap.Client.
type SOLPriceSource interface {
	SOLPrice(ctx context.Context) (float64, error)
}

// Options configures the Analyzer. Program ID sets drive dex classification;
// empty sets disable that label.
type Options struct {
	RaydiumAMMPrograms  []string
	RaydiumCLMMPrograms []string
	PumpfunPrograms     []string
}

type poolEntry struct {
	pool string
	dex  string
}

// Analyzer resolves pools from creation transactions and prices reserves.
type Analyzer struct {
	rpc    solana.RPCClient
	prices SOLPriceSource

	raydiumAMM  map[string]struct{}
	raydiumCLMM map[string]struct{}
	pumpfun     map[string]struct{}

	mu    sync.RWMutex
	pools map[string]poolEntry
}

// NewAnalyzer creates an Analyzer over the given RPC and price source.
func NewAnalyzer(rpc solana.RPCClient, prices SOLPriceSource, opts Options) *Analyzer {
	return &Analyzer{
		rpc:         rpc,
		prices:      prices,
		raydiumAMM:  toSet(opts.RaydiumAMMPrograms),
		raydiumCLMM: toSet(opts.RaydiumCLMMPrograms),
		pumpfun:     toSet(opts.PumpfunPrograms),
		pools:       make(map[string]poolEntry),
	}
}

func toSet(keys []string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// ExtractMint returns the first non-native mint in the post balances, empty
// when the transaction touches no SPL token.
func ExtractMint(tx *solana.Transaction) string {
	if tx == nil || tx.Meta == nil {
		return ""
	}
	for _, bal := range tx.Meta.PostTokenBalances {
		if bal.Mint != "" && bal.Mint != solana.WSOLMint {
			return bal.Mint
		}
	}
	return ""
}

// DetectPool finds the pool authority: the owner holding both the native
// base asset and the token, with the largest combined balance. Ties break
// on the lexically smaller owner so the result is stable.
func DetectPool(tx *solana.Transaction, mint string) string {
	if tx == nil || tx.Meta == nil {
		return ""
	}

	type ownerBal struct {
		wsol, token float64
		hasWSOL     bool
		hasToken    bool
	}
	owners := make(map[string]*ownerBal)

	for _, bal := range tx.Meta.PostTokenBalances {
		if bal.Owner == "" {
			continue
		}
		ob := owners[bal.Owner]
		if ob == nil {
			ob = &ownerBal{}
			owners[bal.Owner] = ob
		}
		switch bal.Mint {
		case solana.WSOLMint:
			ob.wsol += bal.Amount.Units()
			ob.hasWSOL = true
		case mint:
			ob.token += bal.Amount.Units()
			ob.hasToken = true
		}
	}

	type candidate struct {
		owner string
		total float64
	}
	var candidates []candidate
	for owner, ob := range owners {
		if ob.hasWSOL && ob.hasToken {
			candidates = append(candidates, candidate{owner, ob.wsol + ob.token})
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].total != candidates[j].total {
			return candidates[i].total > candidates[j].total
		}
		return candidates[i].owner < candidates[j].owner
	})
	return candidates[0].owner
}

// ClassifyDex labels the transaction by the DEX program it mentions.
func (a *Analyzer) ClassifyDex(tx *solana.Transaction) string {
	if tx == nil || tx.Message == nil {
		return domain.DexUnknown
	}
	for _, key := range tx.Message.AccountKeys {
		if _, ok := a.pumpfun[key]; ok {
			return domain.DexPumpFun
		}
	}
	for _, key := range tx.Message.AccountKeys {
		if _, ok := a.raydiumCLMM[key]; ok {
			return domain.DexRaydiumCLMM
		}
		if _, ok := a.raydiumAMM[key]; ok {
			return domain.DexRaydiumAMM
		}
	}
	return domain.DexUnknown
}

// Analyze builds the liquidity snapshot for a pool-creation transaction.
// Returns nil when no pool can be detected.
func (a *Analyzer) Analyze(ctx context.Context, tx *solana.Transaction, mint string) (*domain.LiquiditySnapshot, error) {
	pool := DetectPool(tx, mint)
	if pool == "" {
		return nil, nil
	}
	dex := a.ClassifyDex(tx)

	a.mu.Lock()
	if _, ok := a.pools[mint]; !ok {
		a.pools[mint] = poolEntry{pool: pool, dex: dex}
	}
	a.mu.Unlock()

	snap := &domain.LiquiditySnapshot{
		Mint:      mint,
		Pool:      pool,
		Dex:       dex,
		Timestamp: time.Now().UnixMilli(),
	}

	solPrice, err := a.prices.SOLPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("sol price: %w", err)
	}

	for _, bal := range tx.Meta.PostTokenBalances {
		if bal.Owner != pool {
			continue
		}
		amount := bal.Amount.Units()
		if bal.Mint == mint {
			snap.TokenReserve += amount
			snap.TokenDecimals = bal.Amount.Decimals
			continue
		}
		switch bal.Mint {
		case solana.WSOLMint:
			snap.SolUSD += amount * solPrice
		case USDCMint:
			snap.UsdcUSD += amount
		case USDTMint:
			snap.UsdtUSD += amount
		case USD1Mint:
			snap.Usd1USD += amount
		default:
			snap.OtherUSD += amount
		}
	}

	// Launch price comes from live reserves, not the creation snapshot.
	if snap.TokenReserve > 0 && snap.BaseUSD() > 0 {
		price, err := a.livePrice(ctx, mint, pool, solPrice)
		if err == nil {
			snap.PriceUSD = price
		}
	}
	snap.TokenSideUSD = snap.TokenReserve * snap.PriceUSD
	snap.TotalUSD = snap.BaseUSD() + snap.TokenSideUSD

	return snap, nil
}

// Pool returns the stored pool for a mint.
func (a *Analyzer) Pool(mint string) (string, string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.pools[mint]
	return entry.pool, entry.dex, ok
}

// CurrentPrice fetches the live on-chain price from the stored pool.
func (a *Analyzer) CurrentPrice(ctx context.Context, mint string) (float64, error) {
	a.mu.RLock()
	entry, ok := a.pools[mint]
	a.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no pool stored for %s", mint)
	}

	solPrice, err := a.prices.SOLPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("sol price: %w", err)
	}
	return a.livePrice(ctx, mint, entry.pool, solPrice)
}

// livePrice derives price from the pool's current reserve ratio.
func (a *Analyzer) livePrice(ctx context.Context, mint, pool string, solPrice float64) (float64, error) {
	reserves, err := a.rpc.GetTokenAccountsByOwner(ctx, pool, "")
	if err != nil {
		return 0, fmt.Errorf("pool reserves: %w", err)
	}
	if len(reserves) < 2 {
		return 0, fmt.Errorf("pool %s has insufficient reserves", pool)
	}

	var tokenAmount, solAmount, stableAmount float64
	for _, r := range reserves {
		switch r.Mint {
		case mint:
			tokenAmount += r.Amount.Units()
		case solana.WSOLMint:
			solAmount += r.Amount.Units()
		case USDCMint, USDTMint, USD1Mint:
			stableAmount += r.Amount.Units()
		}
	}

	if tokenAmount == 0 {
		return 0, fmt.Errorf("token %s not found in pool %s", mint, pool)
	}
	// Stable reserves price directly; otherwise go through SOL.
	if stableAmount > 0 {
		return stableAmount / tokenAmount, nil
	}
	if solAmount > 0 {
		return solAmount / tokenAmount * solPrice, nil
	}
	return 0, fmt.Errorf("no known base asset in pool %s", pool)
}
