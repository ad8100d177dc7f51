package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage/memory"
)

type sellCall struct {
	mint    string
	price   float64
	trigger string
}

type stubSeller struct {
	mu    sync.Mutex
	calls []sellCall
	err   error
}

func (s *stubSeller) Sell(_ context.Context, t *domain.TradeRecord, currentPrice float64, trigger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, sellCall{mint: t.Mint, price: currentPrice, trigger: trigger})
	return nil
}

func (s *stubSeller) sells() []sellCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sellCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// scriptedPricer replays a per-mint price series, one value per call.
type scriptedPricer struct {
	mu     sync.Mutex
	series map[string][]float64
	idx    map[string]int
}

func newScriptedPricer(series map[string][]float64) *scriptedPricer {
	return &scriptedPricer{series: series, idx: make(map[string]int)}
}

func (p *scriptedPricer) CurrentPrice(_ context.Context, mint string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prices := p.series[mint]
	i := p.idx[mint]
	if i >= len(prices) {
		i = len(prices) - 1
	} else {
		p.idx[mint] = i + 1
	}
	return prices[i], nil
}

type stubWallet struct {
	balances map[string]float64
}

func (w *stubWallet) TokenBalances(_ context.Context) (map[string]float64, error) {
	return w.balances, nil
}

func testConfig() Config {
	return Config{
		UseTakeProfit:          true,
		UseStopLoss:            true,
		UseTrailingStop:        true,
		UseTimeout:             true,
		TakeProfit:             4.0,
		StopLoss:               0.25,
		TrailingStop:           0.20,
		TSLActivation:          1.5,
		TimeoutAfter:           60 * time.Second,
		TimeoutProfitThreshold: 1.03,
		TimeoutMaxLoss:         0.50,
		TrackInterval:          time.Second,
		ReconcileInterval:      time.Minute,
		DustUSD:                1.0,
		Simulation:             true,
	}
}

func openTrade(mint string, entry float64) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:       "trade-" + mint,
		Mint:          mint,
		Status:        domain.TradeSimulated,
		EntryPriceUSD: entry,
		TokenAmount:   1000,
		SizeUSD:       10,
		OpenedAt:      time.Now().UnixMilli(),
		Simulated:     true,
	}
}

func TestTrailingStop_Series(t *testing.T) {
	seller := &stubSeller{}
	pricer := newScriptedPricer(map[string][]float64{
		"M1": {1.0, 1.2, 1.6, 1.3, 1.2},
	})
	tracker := NewTracker(seller, pricer, memory.NewTradeStore(), testConfig())

	if err := tracker.Track(openTrade("M1", 1.0)); err != nil {
		t.Fatalf("Track failed: %v", err)
	}

	ctx := context.Background()

	// 1.0, 1.2: below activation, no trail. 1.6: arms the trail (>= 1.5x).
	// 1.3: above 1.6*0.8=1.28, holds.
	for i := 0; i < 4; i++ {
		tracker.Evaluate(ctx)
	}
	if len(seller.sells()) != 0 {
		t.Fatalf("Expected no sell yet, got %v", seller.sells())
	}

	// 1.2 <= 1.28: trail fires.
	tracker.Evaluate(ctx)

	sells := seller.sells()
	if len(sells) != 1 {
		t.Fatalf("Expected 1 sell, got %d", len(sells))
	}
	if sells[0].trigger != domain.TriggerTrailingStop {
		t.Errorf("Trigger mismatch: got %s", sells[0].trigger)
	}
	if sells[0].price != 1.2 {
		t.Errorf("Sell price mismatch: got %f", sells[0].price)
	}

	if len(tracker.Active()) != 0 {
		t.Errorf("Closed position still in active set")
	}

	// Further evaluations never re-fire.
	tracker.Evaluate(ctx)
	if len(seller.sells()) != 1 {
		t.Errorf("Closed position was re-evaluated")
	}
}

func TestStopLoss_PreActivationOnly(t *testing.T) {
	tracker := NewTracker(&stubSeller{}, nil, memory.NewTradeStore(), testConfig())
	now := time.Now().UnixMilli()

	// Peak never reached activation: SL fires at entry*(1-0.25).
	if got := tracker.decide(1.0, 1.2, 0.74, now, now); got != domain.TriggerStopLoss {
		t.Errorf("Expected SL pre-activation, got %q", got)
	}

	// Peak armed the trail: the same price is a TSL decision, not SL.
	if got := tracker.decide(1.0, 1.6, 0.74, now, now); got != domain.TriggerTrailingStop {
		t.Errorf("Expected TSL post-activation, got %q", got)
	}
}

func TestTakeProfit(t *testing.T) {
	tracker := NewTracker(&stubSeller{}, nil, memory.NewTradeStore(), testConfig())
	now := time.Now().UnixMilli()

	if got := tracker.decide(1.0, 4.0, 4.0, now, now); got != domain.TriggerTakeProfit {
		t.Errorf("Expected TP at 4x, got %q", got)
	}
	if got := tracker.decide(1.0, 3.9, 3.9, now, now); got == domain.TriggerTakeProfit {
		t.Errorf("TP fired below the multiple")
	}
}

func TestTimeout(t *testing.T) {
	tracker := NewTracker(&stubSeller{}, nil, memory.NewTradeStore(), testConfig())
	now := time.Now().UnixMilli()
	openedAt := now - (2 * time.Minute).Milliseconds()

	// Held past the window, under the profit threshold, within the loss floor.
	if got := tracker.decide(1.0, 1.0, 1.0, openedAt, now); got != domain.TriggerTimeout {
		t.Errorf("Expected TIMEOUT, got %q", got)
	}

	// Profitable enough to hold.
	if got := tracker.decide(1.0, 1.1, 1.05, openedAt, now); got != "" {
		t.Errorf("Timeout fired on a profitable position: %q", got)
	}

	// Not held long enough.
	if got := tracker.decide(1.0, 1.0, 1.0, now-1000, now); got != "" {
		t.Errorf("Timeout fired before the window: %q", got)
	}

	// Loss beyond the floor defers to the stop loss path.
	cfg := testConfig()
	cfg.UseStopLoss = false
	deep := NewTracker(&stubSeller{}, nil, memory.NewTradeStore(), cfg)
	if got := deep.decide(1.0, 1.0, 0.4, openedAt, now); got != "" {
		t.Errorf("Timeout fired beyond the loss floor: %q", got)
	}
}

func TestRuleToggles(t *testing.T) {
	cfg := testConfig()
	cfg.UseStopLoss = false
	cfg.UseTakeProfit = false
	cfg.UseTrailingStop = false
	cfg.UseTimeout = false
	tracker := NewTracker(&stubSeller{}, nil, memory.NewTradeStore(), cfg)
	now := time.Now().UnixMilli()

	if got := tracker.decide(1.0, 10.0, 0.01, now-10*60*1000, now); got != "" {
		t.Errorf("Disabled rules fired: %q", got)
	}
}

func TestTrack_DuplicateMint(t *testing.T) {
	tracker := NewTracker(&stubSeller{}, nil, memory.NewTradeStore(), testConfig())

	if err := tracker.Track(openTrade("M1", 1.0)); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if err := tracker.Track(openTrade("M1", 2.0)); err == nil {
		t.Error("Expected error for duplicate mint")
	}
}

func TestReconcile_RecoveredAndLost(t *testing.T) {
	seller := &stubSeller{}
	pricer := newScriptedPricer(map[string][]float64{
		"MintNew":  {0.5},
		"MintDust": {0.5},
	})
	trades := memory.NewTradeStore()
	cfg := testConfig()
	cfg.Simulation = false

	wallet := &stubWallet{balances: map[string]float64{
		"MintNew":       100, // $50, untracked: adopt
		"MintDust":      1,   // $0.50, below dust: skip
		solana.WSOLMint: 5,   // base asset: skip
	}}

	tracker := NewTracker(seller, pricer, trades, cfg, WithWallet(wallet))

	// A tracked live position whose tokens are gone from the wallet.
	lost := &domain.TradeRecord{
		TradeID:       "trade-lost",
		Mint:          "MintLost",
		Status:        domain.TradeFinalized,
		EntryPriceUSD: 0.01,
		TokenAmount:   1000,
		SizeUSD:       10,
		OpenedAt:      time.Now().UnixMilli(),
	}
	if err := trades.Insert(context.Background(), lost); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := tracker.Track(lost); err != nil {
		t.Fatalf("Track failed: %v", err)
	}

	if err := tracker.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// Adopted position is tracked and persisted as RECOVERED.
	active := tracker.Active()
	if len(active) != 1 {
		t.Fatalf("Expected 1 active position after reconcile, got %d", len(active))
	}
	if active[0].Mint != "MintNew" || !active[0].Recovered {
		t.Errorf("Expected recovered MintNew, got %+v", active[0])
	}

	recovered, err := trades.GetByMint(context.Background(), "MintNew")
	if err != nil || len(recovered) != 1 {
		t.Fatalf("Expected 1 recovered trade record, got %v (%v)", recovered, err)
	}
	if recovered[0].Status != domain.TradeRecovered {
		t.Errorf("Status mismatch: got %s", recovered[0].Status)
	}
	if recovered[0].SizeUSD != 50 {
		t.Errorf("SizeUSD mismatch: got %f, want 50", recovered[0].SizeUSD)
	}

	// The lost position closed at -100.
	got, err := trades.GetByID(context.Background(), "trade-lost")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.TradeClosed || got.Trigger != domain.TriggerLost {
		t.Errorf("Expected lost close, got %s / %s", got.Status, got.Trigger)
	}
	if got.PnLPercent != -100 {
		t.Errorf("PnLPercent mismatch: got %f", got.PnLPercent)
	}

	// Dust and base assets were not adopted.
	if _, err := trades.GetByMint(context.Background(), "MintDust"); err == nil {
		if dust, _ := trades.GetByMint(context.Background(), "MintDust"); len(dust) != 0 {
			t.Errorf("Dust balance was adopted")
		}
	}
}

func TestReconcile_NoopInSimulation(t *testing.T) {
	wallet := &stubWallet{balances: map[string]float64{"MintNew": 100}}
	trades := memory.NewTradeStore()
	tracker := NewTracker(&stubSeller{}, nil, trades, testConfig(), WithWallet(wallet))

	if err := tracker.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(tracker.Active()) != 0 {
		t.Errorf("Simulation reconcile adopted positions")
	}
}

func TestRestore(t *testing.T) {
	trades := memory.NewTradeStore()
	ctx := context.Background()

	records := []*domain.TradeRecord{
		{TradeID: "t1", Mint: "M1", Status: domain.TradeSimulated, EntryPriceUSD: 1, OpenedAt: 1000, Simulated: true},
		{TradeID: "t2", Mint: "M2", Status: domain.TradeClosed, EntryPriceUSD: 1, OpenedAt: 2000, Simulated: true},
	}
	for _, r := range records {
		if err := trades.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	tracker := NewTracker(&stubSeller{}, nil, trades, testConfig())
	if err := tracker.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	active := tracker.Active()
	if len(active) != 1 || active[0].Mint != "M1" {
		t.Errorf("Expected only the open trade restored, got %v", active)
	}
}

func TestTelemetryPoints(t *testing.T) {
	seller := &stubSeller{}
	pricer := newScriptedPricer(map[string][]float64{"M1": {1.2}})
	telemetry := memory.NewPriceTrackStore()
	tracker := NewTracker(seller, pricer, memory.NewTradeStore(), testConfig(), WithTelemetry(telemetry))

	if err := tracker.Track(openTrade("M1", 1.0)); err != nil {
		t.Fatalf("Track failed: %v", err)
	}

	tracker.Evaluate(context.Background())

	points, err := telemetry.GetByMint(context.Background(), "M1", 0, time.Now().UnixMilli()+1)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Expected 1 telemetry point, got %d", len(points))
	}
	if points[0].PriceUSD != 1.2 || points[0].PeakUSD != 1.2 {
		t.Errorf("Point mismatch: %+v", points[0])
	}
	if points[0].PnLPercent < 19.9 || points[0].PnLPercent > 20.1 {
		t.Errorf("PnLPercent mismatch: got %f", points[0].PnLPercent)
	}
}
