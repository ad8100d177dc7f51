// Package pipeline drives one candidate signature from the intake queue to a
// terminal outcome: rejected at a gate, recorded only, or traded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/idhash"
	"solana-sniper/internal/intake"
	"solana-sniper/internal/liquidity"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

const (
	fetchRetries    = 3
	fetchRetryDelay = 500 * time.Millisecond

	// prefetchDepth is how many signatures immediately preceding the trigger
	// are pulled in, covering races where the live feed missed them.
	prefetchDepth = 4

	// ageLookback bounds the signature history fetch. A token with more
	// history than this cannot be fresh anyway.
	ageLookback = 50
)

// Outcome is the terminal state of one processed candidate.
type Outcome string

const (
	OutcomeFetchFailed  Outcome = "FETCH_FAILED"
	OutcomeNoMint       Outcome = "NO_MINT"
	OutcomeBlacklisted  Outcome = "BLACKLISTED"
	OutcomeAlreadyKnown Outcome = "ALREADY_KNOWN"
	OutcomeTooOld       Outcome = "TOO_OLD"
	OutcomeNoPool       Outcome = "NO_POOL"
	OutcomeLowLiquidity Outcome = "LOW_LIQUIDITY"
	OutcomeUnsafe       Outcome = "UNSAFE"
	OutcomeRecorded     Outcome = "RECORDED" // discovery kept, trade ceiling reached
	OutcomeTraded       Outcome = "TRADED"
	OutcomePanic        Outcome = "PANIC"
)

// Analyzer resolves pools and prices reserves. Satisfied by *liquidity.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, tx *solana.Transaction, mint string) (*domain.LiquiditySnapshot, error)
	CurrentPrice(ctx context.Context, mint string) (float64, error)
}

// SafetyChecker runs the pre-trade gate and the delayed re-score.
// Satisfied by *safety.Checker.
type SafetyChecker interface {
	Phase1(ctx context.Context, mint string, priceUSD float64, decimals int) (bool, string)
	Phase2(ctx context.Context, mint, pool, signature string, marketCapUSD float64) *domain.SafetyReport
}

// Buyer opens a position. Satisfied by *trade.Executor.
type Buyer interface {
	Buy(ctx context.Context, mint string) (*domain.TradeRecord, error)
}

// PositionSink receives opened trades for lifecycle tracking.
// Satisfied by *position.Tracker.
type PositionSink interface {
	Track(trade *domain.TradeRecord) error
	Close(ctx context.Context, mint string, currentPrice float64, trigger string) error
}

// VolumeTracker owns launch baselines and windowed snapshots.
// Satisfied by *volume.Tracker.
type VolumeTracker interface {
	Baseline(ctx context.Context, mint, pool, signature string, blockTime int64) error
	Snapshot(mint string, window time.Duration) domain.VolumeSnapshot
}

// Notifier is the best-effort text sink.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Config carries the pipeline gates and scheduling knobs.
type Config struct {
	LiquidityFloorUSD float64
	MaxTokenAge       time.Duration
	Blacklist         []string

	MaxTrades int

	Phase2Delay     time.Duration
	MinPostBuyScore float64
	ClosePoorScore  bool
}

// Options wires an Orchestrator.
type Options struct {
	Intake   *intake.Intake
	RPC      solana.RPCClient
	Analyzer Analyzer
	Safety   SafetyChecker
	Executor Buyer
	Tracker  PositionSink
	Volumes  VolumeTracker
	Notifier Notifier

	Tokens    storage.TokenStore
	Liquidity storage.LiquiditySnapshotStore
	Volume    storage.VolumeSnapshotStore
	Reports   storage.SafetyReportStore

	Config Config
}

// Orchestrator consumes intake candidates and runs each through the gates.
type Orchestrator struct {
	intake   *intake.Intake
	rpc      solana.RPCClient
	analyzer Analyzer
	safety   SafetyChecker
	executor Buyer
	tracker  PositionSink
	volumes  VolumeTracker
	notifier Notifier

	tokens    storage.TokenStore
	liquidity storage.LiquiditySnapshotStore
	volume    storage.VolumeSnapshotStore
	reports   storage.SafetyReportStore

	cfg       Config
	blacklist map[string]struct{}

	mu         sync.Mutex
	tradeCount int

	// background holds prefetch lookups, volume baselines and phase-2
	// rechecks so Wait can drain them on shutdown.
	background sync.WaitGroup
}

// New creates an Orchestrator from the wired options.
func New(opts Options) *Orchestrator {
	blacklist := make(map[string]struct{}, len(opts.Config.Blacklist))
	for _, mint := range opts.Config.Blacklist {
		blacklist[mint] = struct{}{}
	}
	return &Orchestrator{
		intake:    opts.Intake,
		rpc:       opts.RPC,
		analyzer:  opts.Analyzer,
		safety:    opts.Safety,
		executor:  opts.Executor,
		tracker:   opts.Tracker,
		volumes:   opts.Volumes,
		notifier:  opts.Notifier,
		tokens:    opts.Tokens,
		liquidity: opts.Liquidity,
		volume:    opts.Volume,
		reports:   opts.Reports,
		cfg:       opts.Config,
		blacklist: blacklist,
	}
}

// Run consumes candidates until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	for ctx.Err() == nil {
		ev := o.intake.Next(ctx, time.Second)
		if ev == nil {
			continue
		}
		o.Process(ctx, ev)

		primary, prefetch := o.intake.Depth()
		observability.DefaultMetrics.QueueDepth.Set(float64(primary + prefetch))
	}
}

// Wait blocks until all background tasks have finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// TradeCount returns how many buys have been submitted this run.
func (o *Orchestrator) TradeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tradeCount
}

// Process runs one candidate through the full gate sequence. A panic in any
// step is contained here so one bad candidate cannot take down the consumer
// loop.
func (o *Orchestrator) Process(ctx context.Context, ev *domain.CandidateEvent) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[pipeline] panic processing %s (mint=%s): %v", ev.Signature, ev.Mint, r)
			outcome = OutcomePanic
		}
	}()

	started := time.Now()

	tx, err := o.fetchTransaction(ctx, ev.Signature)
	if err != nil {
		log.Printf("[pipeline] fetch failed for %s: %v", ev.Signature, err)
		observability.RecordGateRejection("fetch")
		return OutcomeFetchFailed
	}

	mint := ev.Mint
	if mint == "" {
		mint = liquidity.ExtractMint(tx)
	}
	if mint == "" {
		observability.RecordGateRejection("mint")
		return OutcomeNoMint
	}
	o.intake.Bind(ev.Signature, mint)

	if ev.Source == domain.SourceLive {
		o.spawn(func() { o.prefetch(ctx, mint, ev.Signature) })
	}

	if _, bad := o.blacklist[mint]; bad {
		o.intake.PurgeMint(mint)
		observability.RecordGateRejection("blacklist")
		return OutcomeBlacklisted
	}
	if o.intake.Known(mint) {
		o.intake.PurgeMint(mint)
		return OutcomeAlreadyKnown
	}

	firstSeen, err := o.tokenAge(ctx, mint)
	if err != nil || time.Since(time.UnixMilli(firstSeen)) > o.cfg.MaxTokenAge {
		o.intake.PurgeMint(mint)
		observability.RecordGateRejection("age")
		return OutcomeTooOld
	}

	snap, err := o.analyzer.Analyze(ctx, tx, mint)
	if err != nil {
		log.Printf("[pipeline] liquidity analysis failed for %s: %v", mint, err)
		o.intake.PurgeMint(mint)
		observability.RecordGateRejection("liquidity")
		return OutcomeLowLiquidity
	}
	if snap == nil {
		o.intake.PurgeMint(mint)
		observability.RecordGateRejection("pool")
		return OutcomeNoPool
	}
	if snap.TotalUSD < o.cfg.LiquidityFloorUSD {
		log.Printf("[pipeline] %s below liquidity floor: $%.0f", mint, snap.TotalUSD)
		o.intake.PurgeMint(mint)
		observability.RecordGateRejection("liquidity")
		return OutcomeLowLiquidity
	}

	marketCap := o.marketCap(ctx, mint, snap.PriceUSD)
	token := &domain.TokenRecord{
		TokenID:      idhash.ComputeTokenID(mint, snap.Pool, ev.Signature),
		Mint:         mint,
		Pool:         snap.Pool,
		Dex:          snap.Dex,
		FirstSeen:    firstSeen,
		DiscoveredAt: time.Now().UnixMilli(),
		LiquidityUSD: snap.TotalUSD,
		PriceUSD:     snap.PriceUSD,
		MarketCapUSD: marketCap,
		Status:       domain.TokenDiscovered,
	}
	if err := o.tokens.Insert(ctx, token); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			o.intake.PurgeMint(mint)
			return OutcomeAlreadyKnown
		}
		log.Printf("[pipeline] token insert failed for %s: %v", mint, err)
	}
	if err := o.liquidity.Insert(ctx, snap); err != nil {
		log.Printf("[pipeline] liquidity snapshot insert failed for %s: %v", mint, err)
	}
	observability.DefaultMetrics.TokensDiscovered.Inc()

	ok, reason := o.safety.Phase1(ctx, mint, snap.PriceUSD, snap.TokenDecimals)
	if !ok {
		log.Printf("[pipeline] %s failed phase 1: %s", mint, reason)
		o.setTokenStatus(ctx, mint, domain.TokenRejected)
		o.intake.PurgeMint(mint)
		observability.RecordGateRejection("phase1")
		return OutcomeUnsafe
	}

	o.intake.MarkKnown(mint)

	o.spawn(func() {
		if err := o.volumes.Baseline(ctx, mint, snap.Pool, ev.Signature, firstSeen); err != nil {
			log.Printf("[pipeline] volume baseline failed for %s: %v", mint, err)
		}
	})

	outcome = OutcomeRecorded
	if o.reserveTradeSlot() {
		trade, err := o.executor.Buy(ctx, mint)
		if err != nil {
			log.Printf("[pipeline] buy failed for %s: %v", mint, err)
			o.releaseTradeSlot()
		} else {
			if err := o.tracker.Track(trade); err != nil {
				log.Printf("[pipeline] track failed for %s: %v", mint, err)
			}
			o.setTokenStatus(ctx, mint, domain.TokenTraded)
			observability.RecordTradeOpened()
			outcome = OutcomeTraded
		}
	} else {
		log.Printf("[pipeline] trade ceiling reached, recording %s without buying", mint)
	}

	elapsed := time.Since(started)
	latency := time.Since(time.UnixMilli(ev.ObservedAt))
	observability.DefaultMetrics.DetectionLatency.Observe(latency.Seconds())
	o.notify(ctx, fmt.Sprintf("🎯 %s on %s: liquidity $%.0f, price $%.8f, detected in %.1fs (pipeline %.1fs)",
		mint, snap.Dex, snap.TotalUSD, snap.PriceUSD, latency.Seconds(), elapsed.Seconds()))

	o.schedulePhase2(ctx, mint, snap.Pool, ev.Signature, marketCap)
	return outcome
}

// fetchTransaction retries with exponential backoff between attempts: 500ms,
// then 1s. The last failure returns immediately.
func (o *Orchestrator) fetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(fetchRetryDelay * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		tx, err := o.rpc.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
		lastErr = err
		if lastErr == nil {
			lastErr = errors.New("transaction not found")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// prefetch offers the few signatures immediately preceding the trigger so the
// pipeline sees transactions the live feed raced past.
func (o *Orchestrator) prefetch(ctx context.Context, mint, triggerSig string) {
	sigs, err := o.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{
		Before: triggerSig,
		Limit:  prefetchDepth,
	})
	if err != nil {
		log.Printf("[pipeline] prefetch lookup failed for %s: %v", mint, err)
		return
	}
	for _, info := range sigs {
		if info.Err != nil {
			continue
		}
		o.intake.Bind(info.Signature, mint)
		accepted := o.intake.Offer(&domain.CandidateEvent{
			Signature:  info.Signature,
			Mint:       mint,
			Slot:       info.Slot,
			Source:     domain.SourcePrefetch,
			ObservedAt: time.Now().UnixMilli(),
		})
		if accepted {
			observability.DefaultMetrics.PrefetchEnqueued.Inc()
		}
	}
}

// tokenAge resolves the block time of the mint's first known transaction,
// in Unix milliseconds. A history longer than the lookback cannot belong to
// a fresh token, so it is reported as unresolvable.
func (o *Orchestrator) tokenAge(ctx context.Context, mint string) (int64, error) {
	sigs, err := o.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{Limit: ageLookback})
	if err != nil {
		return 0, err
	}
	if len(sigs) == 0 || len(sigs) == ageLookback {
		return 0, fmt.Errorf("token age unresolvable for %s (%d signatures)", mint, len(sigs))
	}
	oldest := sigs[len(sigs)-1]
	if oldest.BlockTime == nil {
		return 0, fmt.Errorf("no block time on first transaction of %s", mint)
	}
	return *oldest.BlockTime * 1000, nil
}

// marketCap estimates fully diluted cap from supply and unit price. Zero when
// the supply lookup fails; phase 2 treats that as cap-check failure.
func (o *Orchestrator) marketCap(ctx context.Context, mint string, priceUSD float64) float64 {
	supply, err := o.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		log.Printf("[pipeline] supply lookup failed for %s: %v", mint, err)
		return 0
	}
	return supply.Units() * priceUSD
}

// schedulePhase2 arms the delayed re-score for a mint that passed phase 1.
func (o *Orchestrator) schedulePhase2(ctx context.Context, mint, pool, signature string, marketCapUSD float64) {
	o.spawn(func() {
		select {
		case <-time.After(o.cfg.Phase2Delay):
		case <-ctx.Done():
			return
		}
		o.runPhase2(ctx, mint, pool, signature, marketCapUSD)
	})
}

func (o *Orchestrator) runPhase2(ctx context.Context, mint, pool, signature string, marketCapUSD float64) {
	report := o.safety.Phase2(ctx, mint, pool, signature, marketCapUSD)
	observability.DefaultMetrics.Phase2Score.Observe(report.Score)

	if err := o.reports.Insert(ctx, report); err != nil {
		log.Printf("[pipeline] safety report insert failed for %s: %v", mint, err)
	}
	if err := o.tokens.SetRiskScore(ctx, mint, report.Score); err != nil {
		log.Printf("[pipeline] risk score update failed for %s: %v", mint, err)
	}
	vs := o.volumes.Snapshot(mint, 0)
	if err := o.volume.Insert(ctx, &vs); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		log.Printf("[pipeline] volume snapshot insert failed for %s: %v", mint, err)
	}

	log.Printf("[pipeline] phase 2 for %s: score %.1f (holders=%v volume=%v cap=%v)",
		mint, report.Score, report.HoldersOK, report.VolumeGrew, report.MarketCapOK)

	if report.Score < o.cfg.MinPostBuyScore {
		o.notify(ctx, fmt.Sprintf("⚠️ %s scored %.1f on the post-buy check", mint, report.Score))
		if o.cfg.ClosePoorScore {
			price, err := o.analyzer.CurrentPrice(ctx, mint)
			if err != nil {
				log.Printf("[pipeline] cannot price %s for poor-score close: %v", mint, err)
				return
			}
			if err := o.tracker.Close(ctx, mint, price, domain.TriggerPostBuyScore); err != nil {
				log.Printf("[pipeline] poor-score close failed for %s: %v", mint, err)
			}
		}
	}
}

func (o *Orchestrator) reserveTradeSlot() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tradeCount >= o.cfg.MaxTrades {
		return false
	}
	o.tradeCount++
	return true
}

func (o *Orchestrator) releaseTradeSlot() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tradeCount > 0 {
		o.tradeCount--
	}
}

func (o *Orchestrator) setTokenStatus(ctx context.Context, mint string, status domain.TokenStatus) {
	if err := o.tokens.SetStatus(ctx, mint, status); err != nil {
		log.Printf("[pipeline] status update failed for %s: %v", mint, err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, text string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, text); err != nil {
		log.Printf("[pipeline] notification failed: %v", err)
	}
}

func (o *Orchestrator) spawn(fn func()) {
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		fn()
	}()
}
