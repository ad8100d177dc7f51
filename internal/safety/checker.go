// Package safety gates new tokens before buying and re-scores them after.
package safety

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/swap"
	"solana-sniper/internal/volume"
)

// RevokedAuthority is the sentinel some launchpads write instead of clearing
// the mint authority option.
const RevokedAuthority = "11111111111111111111111111111111"

// QuoteSource provides swap quotes and the SOL price. Satisfied by
// *swap.Client.
type QuoteSource interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amountRaw uint64, slippagePct float64) (*swap.Quote, error)
	SOLPrice(ctx context.Context) (float64, error)
}

// LockSource reports LP lock status. Satisfied by *LockOracle.
type LockSource interface {
	Status(ctx context.Context, mint string) (LockStatus, error)
}

// VolumeSource answers growth queries. Satisfied by *volume.Tracker.
type VolumeSource interface {
	CheckGrowth(ctx context.Context, mint, pool, signature string) (bool, error)
	Stats(mint string, window time.Duration) volume.Stats
}

// Config carries the check thresholds.
type Config struct {
	TradeAmountUSD float64
	SlippagePct    float64
	MaxFeeRatio    float64 // raw in/out sanity bound
	FeePctLimit    float64 // effective round-trip fee bound, percent

	MarketCapCeiling float64

	MinHolders         int
	TopHolderPct       float64
	Top5Pct            float64
	UniformEpsilonPct  float64
	UniformFloorPct    float64
	SmallTopPct        float64
	SecondaryHolderPct float64
}

// Checker runs the pre-trade gate and the delayed re-score.
type Checker struct {
	rpc     solana.RPCClient
	router  QuoteSource
	oracle  LockSource
	volumes VolumeSource
	cfg     Config
}

// NewChecker wires a Checker.
func NewChecker(rpc solana.RPCClient, router QuoteSource, oracle LockSource, volumes VolumeSource, cfg Config) *Checker {
	return &Checker{rpc: rpc, router: router, oracle: oracle, volumes: volumes, cfg: cfg}
}

// Phase1 is the synchronous pre-trade gate. It returns false with a reason
// when the token must not be bought.
func (c *Checker) Phase1(ctx context.Context, mint string, priceUSD float64, decimals int) (bool, string) {
	if priceUSD <= 0 {
		return false, "no price for reverse quote"
	}

	// Reverse swap: sell the position we are about to hold.
	tokenUnits := c.cfg.TradeAmountUSD / priceUSD
	amountRaw := uint64(tokenUnits * math.Pow10(decimals))
	if amountRaw == 0 {
		amountRaw = 1
	}

	quote, err := c.router.GetQuote(ctx, mint, solana.WSOLMint, amountRaw, c.cfg.SlippagePct)
	if err != nil {
		return false, fmt.Sprintf("no exit route: %v", err)
	}
	if quote.OutAmount == 0 {
		return false, "zero output on reverse quote"
	}
	if ratio := float64(quote.InAmount) / float64(quote.OutAmount); ratio > c.cfg.MaxFeeRatio {
		return false, fmt.Sprintf("unreasonable in/out ratio %.0f", ratio)
	}

	solPrice, err := c.router.SOLPrice(ctx)
	if err == nil && solPrice > 0 {
		exitUSD := float64(quote.OutAmount) / solana.LamportsPerSOL * solPrice
		feePct := (1 - exitUSD/c.cfg.TradeAmountUSD) * 100
		if feePct > c.cfg.FeePctLimit {
			return false, fmt.Sprintf("effective exit fee %.1f%% exceeds %.1f%%", feePct, c.cfg.FeePctLimit)
		}
	}

	mintInfo, err := c.rpc.GetMintInfo(ctx, mint)
	if err != nil {
		return false, fmt.Sprintf("mint info: %v", err)
	}
	if mintInfo == nil {
		return false, "mint account not found"
	}
	if mintInfo.MintAuthority != "" && mintInfo.MintAuthority != RevokedAuthority {
		return false, fmt.Sprintf("live mint authority %s", mintInfo.MintAuthority)
	}
	if mintInfo.FreezeAuthority != "" {
		return false, fmt.Sprintf("live freeze authority %s", mintInfo.FreezeAuthority)
	}

	asset, err := c.rpc.GetAsset(ctx, mint)
	if err != nil {
		return false, fmt.Sprintf("asset metadata: %v", err)
	}
	if asset != nil && asset.Mutable {
		status, err := c.oracle.Status(ctx, mint)
		if err != nil {
			return false, fmt.Sprintf("lock oracle: %v", err)
		}
		if status == LockUnlocked {
			return false, "mutable metadata with unlocked liquidity"
		}
		log.Printf("[safety] %s is mutable but liquidity is locked, residual risk", mint)
	}

	return true, ""
}

// Phase2 is the delayed post-buy re-score: four one-point checks summed into
// a 0..4 score. It always returns a report; individual check errors score
// zero for that check.
func (c *Checker) Phase2(ctx context.Context, mint, pool, signature string, marketCapUSD float64) *domain.SafetyReport {
	report := &domain.SafetyReport{
		Mint:         mint,
		MarketCapUSD: marketCapUSD,
		CheckedAt:    time.Now().UnixMilli(),
	}

	status, err := c.oracle.Status(ctx, mint)
	switch {
	case err != nil:
		log.Printf("[safety] lock check failed for %s: %v", mint, err)
	case status == LockSafe:
		report.LockScore = 1
	case status == LockRisky:
		report.LockScore = 0.5
	}
	report.Score += report.LockScore

	ok, count, topPct, err := c.holderDistribution(ctx, mint)
	if err != nil {
		log.Printf("[safety] holder check failed for %s: %v", mint, err)
	}
	report.HoldersOK = ok
	report.HolderCount = count
	report.TopHolderPct = topPct
	if ok {
		report.Score++
	}

	if _, err := c.volumes.CheckGrowth(ctx, mint, pool, signature); err != nil {
		log.Printf("[safety] volume check failed for %s: %v", mint, err)
	} else if c.volumes.Stats(mint, 0).DeltaUSD > 0 {
		report.VolumeGrew = true
		report.Score++
	}

	if marketCapUSD > 0 && marketCapUSD <= c.cfg.MarketCapCeiling {
		report.MarketCapOK = true
		report.Score++
	}

	return report
}

// holderDistribution checks the largest accounts against the configured
// concentration rules.
func (c *Checker) holderDistribution(ctx context.Context, mint string) (ok bool, count int, topPct float64, err error) {
	largest, err := c.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return false, 0, 0, fmt.Errorf("largest accounts: %w", err)
	}

	supply, err := c.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return false, 0, 0, fmt.Errorf("token supply: %w", err)
	}
	total := supply.Units()
	if total == 0 {
		return false, 0, 0, fmt.Errorf("zero supply")
	}

	balances := make([]float64, 0, len(largest))
	for _, acc := range largest {
		balances = append(balances, acc.Units())
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(balances)))
	count = len(balances)

	if count < c.cfg.MinHolders {
		return false, count, 0, nil
	}

	top := balances
	if len(top) > 10 {
		top = top[:10]
	}
	pcts := make([]float64, len(top))
	for i, b := range top {
		pcts[i] = b / total * 100
	}
	topPct = pcts[0]

	if pcts[0] > c.cfg.TopHolderPct {
		return false, count, topPct, nil
	}

	var top5 float64
	for i := 0; i < len(pcts) && i < 5; i++ {
		top5 += pcts[i]
	}
	if top5 > c.cfg.Top5Pct {
		return false, count, topPct, nil
	}

	// Bot farms fill wallets with nearly identical non-trivial balances.
	if len(pcts) > 1 {
		minPct, maxPct := pcts[1], pcts[1]
		for _, p := range pcts[1:] {
			if p < minPct {
				minPct = p
			}
			if p > maxPct {
				maxPct = p
			}
		}
		if maxPct-minPct < c.cfg.UniformEpsilonPct && maxPct > c.cfg.UniformFloorPct {
			return false, count, topPct, nil
		}
		// A tiny top holder with a fat secondary wallet hides the dev stake.
		if pcts[0] < c.cfg.SmallTopPct && maxPct > c.cfg.SecondaryHolderPct {
			return false, count, topPct, nil
		}
	}

	return true, count, topPct, nil
}
