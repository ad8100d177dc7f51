package position

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/idhash"
	"solana-sniper/internal/liquidity"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// Seller closes positions through the executor.
type Seller interface {
	Sell(ctx context.Context, t *domain.TradeRecord, currentPrice float64, trigger string) error
}

// Pricer resolves live token prices.
type Pricer interface {
	CurrentPrice(ctx context.Context, mint string) (float64, error)
}

// WalletBalances lists the wallet's SPL holdings for reconciliation.
type WalletBalances interface {
	TokenBalances(ctx context.Context) (map[string]float64, error)
}

// Config holds the exit rules and loop intervals.
type Config struct {
	UseTakeProfit   bool
	UseStopLoss     bool
	UseTrailingStop bool
	UseTimeout      bool

	TakeProfit             float64 // multiple of entry
	StopLoss               float64 // fractional drop from entry
	TrailingStop           float64 // fractional drop from peak
	TSLActivation          float64 // multiple of entry that arms the trail
	TimeoutAfter           time.Duration
	TimeoutProfitThreshold float64 // multiple of entry under which timeout fires
	TimeoutMaxLoss         float64 // fractional loss beyond which timeout defers

	TrackInterval     time.Duration
	ReconcileInterval time.Duration
	DustUSD           float64
	Simulation        bool
}

// Tracker owns the open-position arena. It evaluates exit rules on every
// tick and reconciles against the wallet on a longer interval.
type Tracker struct {
	seller    Seller
	pricer    Pricer
	wallet    WalletBalances
	trades    storage.TradeStore
	telemetry storage.PriceTrackStore
	cfg       Config

	mu     sync.Mutex
	active map[string]*domain.Position // keyed by mint
}

// TrackerOption configures the Tracker.
type TrackerOption func(*Tracker)

// WithTelemetry enables per-evaluation price-track writes.
func WithTelemetry(store storage.PriceTrackStore) TrackerOption {
	return func(t *Tracker) {
		t.telemetry = store
	}
}

// WithWallet enables wallet reconciliation. Without it (simulation mode)
// reconciliation is a no-op.
func WithWallet(w WalletBalances) TrackerOption {
	return func(t *Tracker) {
		t.wallet = w
	}
}

// NewTracker creates a Tracker.
func NewTracker(seller Seller, pricer Pricer, trades storage.TradeStore, cfg Config, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		seller: seller,
		pricer: pricer,
		trades: trades,
		cfg:    cfg,
		active: make(map[string]*domain.Position),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track registers an open trade for lifecycle evaluation. At most one
// position per mint; a second registration is rejected.
func (t *Tracker) Track(trade *domain.TradeRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.active[trade.Mint]; exists {
		return fmt.Errorf("position for %s already tracked", trade.Mint)
	}

	t.active[trade.Mint] = &domain.Position{
		TradeID:       trade.TradeID,
		Mint:          trade.Mint,
		EntryPriceUSD: trade.EntryPriceUSD,
		TokenAmount:   trade.TokenAmount,
		SizeUSD:       trade.SizeUSD,
		PeakPriceUSD:  trade.EntryPriceUSD,
		EntrySig:      trade.EntrySig,
		Status:        domain.PositionOpen,
		OpenedAt:      trade.OpenedAt,
		Simulated:     trade.Simulated,
		Recovered:     trade.Status == domain.TradeRecovered,
	}
	return nil
}

// Active returns a snapshot of currently tracked positions.
func (t *Tracker) Active() []domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]domain.Position, 0, len(t.active))
	for _, p := range t.active {
		result = append(result, *p)
	}
	return result
}

// Run drives the evaluation and reconciliation loops until ctx ends.
func (t *Tracker) Run(ctx context.Context) {
	evalTicker := time.NewTicker(t.cfg.TrackInterval)
	defer evalTicker.Stop()
	reconTicker := time.NewTicker(t.cfg.ReconcileInterval)
	defer reconTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-evalTicker.C:
			t.Evaluate(ctx)
		case <-reconTicker.C:
			if err := t.Reconcile(ctx); err != nil {
				log.Printf("[position] reconcile: %v", err)
			}
		}
	}
}

// Evaluate runs one pass over all tracked positions.
func (t *Tracker) Evaluate(ctx context.Context) {
	now := time.Now().UnixMilli()
	var points []*domain.PriceTrackPoint

	for _, p := range t.Active() {
		cur, err := t.pricer.CurrentPrice(ctx, p.Mint)
		if err != nil {
			log.Printf("[position] price %s: %v", p.Mint, err)
			continue
		}

		peak := t.updatePeak(p.Mint, cur)
		if t.telemetry != nil {
			points = append(points, &domain.PriceTrackPoint{
				Mint:       p.Mint,
				Timestamp:  now,
				PriceUSD:   cur,
				PeakUSD:    peak,
				PnLPercent: pnlPercent(p.EntryPriceUSD, cur),
			})
		}

		trigger := t.decide(p.EntryPriceUSD, peak, cur, p.OpenedAt, now)
		if trigger == "" {
			continue
		}

		if err := t.Close(ctx, p.Mint, cur, trigger); err != nil {
			log.Printf("[position] close %s (%s): %v", p.Mint, trigger, err)
		}
	}

	if t.telemetry != nil && len(points) > 0 {
		if err := t.telemetry.InsertBulk(ctx, points); err != nil {
			log.Printf("[position] telemetry: %v", err)
		}
	}
}

// Close sells the position for a mint and removes it from the active set.
// The trigger string is recorded on the trade.
func (t *Tracker) Close(ctx context.Context, mint string, currentPrice float64, trigger string) error {
	t.mu.Lock()
	p, exists := t.active[mint]
	if !exists {
		t.mu.Unlock()
		return fmt.Errorf("no tracked position for %s", mint)
	}
	p.Status = domain.PositionClosing
	p.Trigger = trigger
	trade := &domain.TradeRecord{
		TradeID:       p.TradeID,
		Mint:          p.Mint,
		EntryPriceUSD: p.EntryPriceUSD,
		TokenAmount:   p.TokenAmount,
		SizeUSD:       p.SizeUSD,
		Simulated:     p.Simulated,
	}
	t.mu.Unlock()

	if err := t.seller.Sell(ctx, trade, currentPrice, trigger); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.active, mint)
	t.mu.Unlock()
	observability.RecordTradeClosed(trigger)
	return nil
}

// Reconcile aligns tracked state with the wallet: unknown balances above
// dust are adopted as recovered positions, tracked positions missing from
// the wallet are closed as lost. No-op without a wallet or in simulation.
func (t *Tracker) Reconcile(ctx context.Context) error {
	if t.wallet == nil || t.cfg.Simulation {
		return nil
	}

	balances, err := t.wallet.TokenBalances(ctx)
	if err != nil {
		return fmt.Errorf("wallet balances: %w", err)
	}

	now := time.Now().UnixMilli()

	// Adopt wallet holdings nothing is tracking.
	for mint, balance := range balances {
		if balance <= 0 || isBaseAsset(mint) || t.isTracked(mint) {
			continue
		}

		price, err := t.pricer.CurrentPrice(ctx, mint)
		if err != nil {
			log.Printf("[position] recover price %s: %v", mint, err)
			continue
		}
		if balance*price <= t.cfg.DustUSD {
			continue
		}

		record := &domain.TradeRecord{
			TradeID:       idhash.ComputeTradeID(mint, "recovered", now),
			Mint:          mint,
			Status:        domain.TradeRecovered,
			EntryPriceUSD: price,
			TokenAmount:   balance,
			SizeUSD:       balance * price,
			OpenedAt:      now,
		}
		if err := t.trades.Insert(ctx, record); err != nil {
			log.Printf("[position] persist recovered %s: %v", mint, err)
			continue
		}
		if err := t.Track(record); err != nil {
			log.Printf("[position] track recovered %s: %v", mint, err)
			continue
		}
		log.Printf("[position] recovered %s: %.6f tokens (~$%.2f)", mint, balance, balance*price)
	}

	// Close tracked positions whose tokens are gone from the wallet.
	for _, p := range t.Active() {
		if p.Simulated {
			continue
		}
		balance := balances[p.Mint]
		if balance*p.EntryPriceUSD > t.cfg.DustUSD {
			continue
		}

		err := t.trades.Close(ctx, p.TradeID, storage.TradeClose{
			PnLPercent: -100,
			Trigger:    domain.TriggerLost,
			ClosedAt:   now,
		})
		if err != nil {
			log.Printf("[position] close lost %s: %v", p.Mint, err)
			continue
		}
		t.mu.Lock()
		delete(t.active, p.Mint)
		t.mu.Unlock()
		observability.RecordTradeClosed(domain.TriggerLost)
		log.Printf("[position] lost %s: no wallet balance, closed at -100%%", p.Mint)
	}

	return nil
}

// Restore re-registers open trades from storage, used at startup.
func (t *Tracker) Restore(ctx context.Context) error {
	open, err := t.trades.GetOpen(ctx, t.cfg.Simulation)
	if err != nil {
		return fmt.Errorf("load open trades: %w", err)
	}
	for _, trade := range open {
		if err := t.Track(trade); err != nil {
			log.Printf("[position] restore %s: %v", trade.Mint, err)
		}
	}
	if len(open) > 0 {
		log.Printf("[position] restored %d open positions", len(open))
	}
	return nil
}

// decide applies the exit rules in fixed order: SL, TP, TSL, TIMEOUT.
// Returns the trigger that fired, or empty.
func (t *Tracker) decide(entry, peak, cur float64, openedAt, now int64) string {
	armed := peak >= entry*t.cfg.TSLActivation

	if t.cfg.UseStopLoss && !armed && cur <= entry*(1-t.cfg.StopLoss) {
		return domain.TriggerStopLoss
	}
	if t.cfg.UseTakeProfit && cur >= entry*t.cfg.TakeProfit {
		return domain.TriggerTakeProfit
	}
	if t.cfg.UseTrailingStop && armed && cur <= peak*(1-t.cfg.TrailingStop) {
		return domain.TriggerTrailingStop
	}
	if t.cfg.UseTimeout {
		held := time.Duration(now-openedAt) * time.Millisecond
		if held > t.cfg.TimeoutAfter &&
			cur < entry*t.cfg.TimeoutProfitThreshold &&
			cur >= entry*(1-t.cfg.TimeoutMaxLoss) {
			return domain.TriggerTimeout
		}
	}
	return ""
}

func (t *Tracker) updatePeak(mint string, cur float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.active[mint]
	if !exists {
		return cur
	}
	if cur > p.PeakPriceUSD {
		p.PeakPriceUSD = cur
	}
	return p.PeakPriceUSD
}

func (t *Tracker) isTracked(mint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[mint]
	return ok
}

// isBaseAsset reports whether a mint is excluded from reconciliation.
func isBaseAsset(mint string) bool {
	switch mint {
	case solana.WSOLMint, liquidity.USDCMint, liquidity.USDTMint, liquidity.USD1Mint:
		return true
	}
	return false
}

func pnlPercent(entry, cur float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (cur/entry - 1) * 100
}
