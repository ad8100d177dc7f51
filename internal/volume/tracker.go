// Package volume accumulates per-mint trade volume observed on the pool and
// answers growth queries for the delayed safety re-check.
package volume

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

const (
	// maxSamples bounds per-mint memory; oldest samples fall off.
	maxSamples = 10000

	// scanLimit is how many recent pool signatures one scan inspects.
	scanLimit = 20
)

// TokenPricer prices a mint in USD. Satisfied by *liquidity.Analyzer.
type TokenPricer interface {
	CurrentPrice(ctx context.Context, mint string) (float64, error)
}

type launchInfo struct {
	launchTime   int64 // Unix ms
	launchVolume float64
	firstSig     string
	lastSnapshot float64
	lastBuy      float64
	lastSell     float64
}

// Stats is an aggregated volume window.
type Stats struct {
	Count      int
	BuyCount   int
	SellCount  int
	BuyUSD     float64
	SellUSD    float64
	TotalUSD   float64
	NetFlowUSD float64
	LaunchUSD  float64
	DeltaUSD   float64
}

// Tracker holds rolling volume samples per mint.
type Tracker struct {
	rpc    solana.RPCClient
	pricer TokenPricer

	mu      sync.Mutex
	samples map[string][]domain.VolumeSample
	launch  map[string]*launchInfo
}

// NewTracker creates a Tracker over the given RPC and price source.
func NewTracker(rpc solana.RPCClient, pricer TokenPricer) *Tracker {
	return &Tracker{
		rpc:     rpc,
		pricer:  pricer,
		samples: make(map[string][]domain.VolumeSample),
		launch:  make(map[string]*launchInfo),
	}
}

// Record appends buy and sell volume for a mint. Zero amounts are skipped.
func (t *Tracker) Record(mint string, buyUSD, sellUSD float64, signature string) {
	now := time.Now().UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	if buyUSD > 0 {
		t.append(mint, domain.VolumeSample{
			Timestamp: now, AmountUSD: buyUSD, Side: domain.VolumeBuy, Signature: signature,
		})
	}
	if sellUSD > 0 {
		t.append(mint, domain.VolumeSample{
			Timestamp: now, AmountUSD: sellUSD, Side: domain.VolumeSell, Signature: signature,
		})
	}
}

// append assumes t.mu is held.
func (t *Tracker) append(mint string, s domain.VolumeSample) {
	buf := append(t.samples[mint], s)
	if len(buf) > maxSamples {
		buf = buf[len(buf)-maxSamples:]
	}
	t.samples[mint] = buf
}

// SnapshotLaunch records the baseline volume at discovery time. Growth is
// measured against this baseline.
func (t *Tracker) SnapshotLaunch(mint string, blockTime int64, firstTradeUSD float64, signature string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.launch[mint] = &launchInfo{
		launchTime:   blockTime,
		launchVolume: firstTradeUSD,
		firstSig:     signature,
		lastSnapshot: firstTradeUSD,
	}
}

// Stats aggregates samples within the window. A zero window means all
// samples.
func (t *Tracker) Stats(mint string, window time.Duration) Stats {
	now := time.Now().UnixMilli()
	cutoff := int64(0)
	if window > 0 {
		cutoff = now - window.Milliseconds()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var st Stats
	for _, s := range t.samples[mint] {
		if s.Timestamp < cutoff {
			continue
		}
		st.Count++
		switch s.Side {
		case domain.VolumeBuy:
			st.BuyCount++
			st.BuyUSD += s.AmountUSD
		case domain.VolumeSell:
			st.SellCount++
			st.SellUSD += s.AmountUSD
		}
	}
	st.TotalUSD = st.BuyUSD + st.SellUSD
	st.NetFlowUSD = st.BuyUSD - st.SellUSD

	if info := t.launch[mint]; info != nil {
		st.LaunchUSD = info.launchVolume
		st.DeltaUSD = st.TotalUSD - info.launchVolume
		if st.DeltaUSD < 0 {
			st.DeltaUSD = 0
		}
	} else {
		st.DeltaUSD = st.TotalUSD
	}
	return st
}

// Snapshot renders a window as a persistable record.
func (t *Tracker) Snapshot(mint string, window time.Duration) domain.VolumeSnapshot {
	st := t.Stats(mint, window)
	return domain.VolumeSnapshot{
		Mint:      mint,
		WindowSec: int(window.Seconds()),
		BuyUSD:    st.BuyUSD,
		SellUSD:   st.SellUSD,
		TotalUSD:  st.TotalUSD,
		DeltaUSD:  st.DeltaUSD,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Baseline runs the launch scan for a freshly discovered mint: tally current
// pool volume and store it as the growth baseline.
func (t *Tracker) Baseline(ctx context.Context, mint, pool, signature string, blockTime int64) error {
	buyUSD, sellUSD, err := t.scanPool(ctx, mint, pool)
	if err != nil {
		return err
	}
	t.Record(mint, buyUSD, sellUSD, signature)
	t.SnapshotLaunch(mint, blockTime, buyUSD+sellUSD, signature)
	return nil
}

// CheckGrowth rescans the pool and reports whether volume moved past the
// last snapshot. Only the delta is recorded so samples are not double
// counted.
func (t *Tracker) CheckGrowth(ctx context.Context, mint, pool, signature string) (bool, error) {
	buyUSD, sellUSD, err := t.scanPool(ctx, mint, pool)
	if err != nil {
		return false, err
	}
	total := buyUSD + sellUSD

	t.mu.Lock()
	info := t.launch[mint]
	if info == nil {
		info = &launchInfo{}
		t.launch[mint] = info
	}
	prev := info.lastSnapshot
	deltaBuy := buyUSD - info.lastBuy
	deltaSell := sellUSD - info.lastSell
	info.lastSnapshot = total
	info.lastBuy = buyUSD
	info.lastSell = sellUSD
	t.mu.Unlock()

	if deltaBuy < 0 {
		deltaBuy = 0
	}
	if deltaSell < 0 {
		deltaSell = 0
	}
	if deltaBuy+deltaSell > 0 {
		t.Record(mint, deltaBuy, deltaSell, signature)
	}

	return total > prev, nil
}

// scanPool tallies recent pool transfers. Tokens leaving the pool are buys,
// tokens entering are sells, both priced at the current on-chain price.
func (t *Tracker) scanPool(ctx context.Context, mint, pool string) (buyUSD, sellUSD float64, err error) {
	sigs, err := t.rpc.GetSignaturesForAddress(ctx, pool, &solana.SignaturesOpts{Limit: scanLimit})
	if err != nil {
		return 0, 0, fmt.Errorf("pool signatures: %w", err)
	}

	price, err := t.pricer.CurrentPrice(ctx, mint)
	if err != nil || price <= 0 {
		return 0, 0, fmt.Errorf("price %s: %w", mint, err)
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		tx, err := t.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil || tx == nil || tx.Meta == nil {
			continue
		}

		delta := poolTokenDelta(tx.Meta, pool, mint)
		switch {
		case delta < 0:
			buyUSD += -delta * price
		case delta > 0:
			sellUSD += delta * price
		}
	}
	return buyUSD, sellUSD, nil
}

// poolTokenDelta is the pool's token balance change in one transaction.
func poolTokenDelta(meta *solana.TransactionMeta, pool, mint string) float64 {
	var pre, post float64
	for _, b := range meta.PreTokenBalances {
		if b.Owner == pool && b.Mint == mint {
			pre += b.Amount.Units()
		}
	}
	for _, b := range meta.PostTokenBalances {
		if b.Owner == pool && b.Mint == mint {
			post += b.Amount.Units()
		}
	}
	return post - pre
}
