package safety

import (
	"context"
	"fmt"
	"testing"
	"time"

	"solana-sniper/internal/solana"
	"solana-sniper/internal/swap"
	"solana-sniper/internal/volume"
)

const testMint = "TokenMint1111111111111111111111111111111111"

func ui(v float64) *float64 { return &v }

func testConfig() Config {
	return Config{
		TradeAmountUSD:     10,
		SlippagePct:        3,
		MaxFeeRatio:        10000,
		FeePctLimit:        5,
		MarketCapCeiling:   1_000_000,
		MinHolders:         20,
		TopHolderPct:       30,
		Top5Pct:            70,
		UniformEpsilonPct:  0.01,
		UniformFloorPct:    5,
		SmallTopPct:        2,
		SecondaryHolderPct: 6,
	}
}

type stubRouter struct {
	quote    *swap.Quote
	quoteErr error
	solPrice float64
}

func (s *stubRouter) GetQuote(ctx context.Context, in, out string, amount uint64, slip float64) (*swap.Quote, error) {
	return s.quote, s.quoteErr
}

func (s *stubRouter) SOLPrice(ctx context.Context) (float64, error) {
	return s.solPrice, nil
}

type stubOracle struct {
	status LockStatus
	err    error
}

func (s *stubOracle) Status(ctx context.Context, mint string) (LockStatus, error) {
	return s.status, s.err
}

type stubVolume struct {
	grew  bool
	delta float64
	err   error
}

func (s *stubVolume) CheckGrowth(ctx context.Context, mint, pool, sig string) (bool, error) {
	return s.grew, s.err
}

func (s *stubVolume) Stats(mint string, window time.Duration) volume.Stats {
	return volume.Stats{DeltaUSD: s.delta}
}

type stubRPC struct {
	solana.RPCClient
	mintInfo *solana.MintInfo
	asset    *solana.AssetInfo
	largest  []solana.TokenAmount
	supply   solana.TokenAmount
}

func (s *stubRPC) GetMintInfo(ctx context.Context, mint string) (*solana.MintInfo, error) {
	return s.mintInfo, nil
}

func (s *stubRPC) GetAsset(ctx context.Context, mint string) (*solana.AssetInfo, error) {
	return s.asset, nil
}

func (s *stubRPC) GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAmount, error) {
	return s.largest, nil
}

func (s *stubRPC) GetTokenSupply(ctx context.Context, mint string) (solana.TokenAmount, error) {
	return s.supply, nil
}

// healthyQuote exits the $10 position for ~$9.80 at $100/SOL.
func healthyQuote() *swap.Quote {
	return &swap.Quote{InAmount: 1_000_000, OutAmount: 98_000_000}
}

func TestPhase1_Passes(t *testing.T) {
	c := NewChecker(
		&stubRPC{mintInfo: &solana.MintInfo{}, asset: &solana.AssetInfo{Mutable: false}},
		&stubRouter{quote: healthyQuote(), solPrice: 100},
		&stubOracle{status: LockSafe},
		&stubVolume{},
		testConfig(),
	)

	ok, reason := c.Phase1(context.Background(), testMint, 0.00001, 6)
	if !ok {
		t.Errorf("Phase1 failed: %s", reason)
	}
}

func TestPhase1_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		rpc    *stubRPC
		router *stubRouter
		oracle *stubOracle
		price  float64
	}{
		{
			name:   "no price",
			rpc:    &stubRPC{mintInfo: &solana.MintInfo{}},
			router: &stubRouter{quote: healthyQuote(), solPrice: 100},
			price:  0,
		},
		{
			name:   "no route",
			rpc:    &stubRPC{mintInfo: &solana.MintInfo{}},
			router: &stubRouter{quoteErr: fmt.Errorf("no routes found"), solPrice: 100},
			price:  0.00001,
		},
		{
			name:   "zero output",
			rpc:    &stubRPC{mintInfo: &solana.MintInfo{}},
			router: &stubRouter{quote: &swap.Quote{InAmount: 100, OutAmount: 0}, solPrice: 100},
			price:  0.00001,
		},
		{
			name:   "absurd ratio",
			rpc:    &stubRPC{mintInfo: &solana.MintInfo{}},
			router: &stubRouter{quote: &swap.Quote{InAmount: 100_000_000, OutAmount: 1}, solPrice: 100},
			price:  0.00001,
		},
		{
			name: "excessive fee",
			rpc:  &stubRPC{mintInfo: &solana.MintInfo{}},
			// $10 in, $8 out: 20% effective fee.
			router: &stubRouter{quote: &swap.Quote{InAmount: 1_000_000, OutAmount: 80_000_000}, solPrice: 100},
			price:  0.00001,
		},
		{
			name:   "live mint authority",
			rpc:    &stubRPC{mintInfo: &solana.MintInfo{MintAuthority: "SomeDevKey"}},
			router: &stubRouter{quote: healthyQuote(), solPrice: 100},
			price:  0.00001,
		},
		{
			name:   "live freeze authority",
			rpc:    &stubRPC{mintInfo: &solana.MintInfo{FreezeAuthority: "SomeDevKey"}},
			router: &stubRouter{quote: healthyQuote(), solPrice: 100},
			price:  0.00001,
		},
		{
			name:   "mint account missing",
			rpc:    &stubRPC{mintInfo: nil},
			router: &stubRouter{quote: healthyQuote(), solPrice: 100},
			price:  0.00001,
		},
		{
			name:   "mutable with unlocked liquidity",
			rpc:    &stubRPC{mintInfo: &solana.MintInfo{}, asset: &solana.AssetInfo{Mutable: true}},
			router: &stubRouter{quote: healthyQuote(), solPrice: 100},
			oracle: &stubOracle{status: LockUnlocked},
			price:  0.00001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := tt.oracle
			if oracle == nil {
				oracle = &stubOracle{status: LockSafe}
			}
			c := NewChecker(tt.rpc, tt.router, oracle, &stubVolume{}, testConfig())
			if ok, _ := c.Phase1(context.Background(), testMint, tt.price, 6); ok {
				t.Errorf("Phase1 should reject: %s", tt.name)
			}
		})
	}
}

func TestPhase1_RevokedSentinelAccepted(t *testing.T) {
	c := NewChecker(
		&stubRPC{mintInfo: &solana.MintInfo{MintAuthority: RevokedAuthority}},
		&stubRouter{quote: healthyQuote(), solPrice: 100},
		&stubOracle{status: LockSafe},
		&stubVolume{},
		testConfig(),
	)

	if ok, reason := c.Phase1(context.Background(), testMint, 0.00001, 6); !ok {
		t.Errorf("revoked sentinel should pass: %s", reason)
	}
}

func TestPhase1_MutableButLockedPasses(t *testing.T) {
	c := NewChecker(
		&stubRPC{mintInfo: &solana.MintInfo{}, asset: &solana.AssetInfo{Mutable: true}},
		&stubRouter{quote: healthyQuote(), solPrice: 100},
		&stubOracle{status: LockSafe},
		&stubVolume{},
		testConfig(),
	)

	if ok, reason := c.Phase1(context.Background(), testMint, 0.00001, 6); !ok {
		t.Errorf("mutable with locked liquidity should pass: %s", reason)
	}
}

// healthyHolders builds 25 accounts summing well under the thresholds.
func healthyHolders() ([]solana.TokenAmount, solana.TokenAmount) {
	var largest []solana.TokenAmount
	for i := 0; i < 25; i++ {
		largest = append(largest, solana.TokenAmount{UiAmount: ui(10 - float64(i)*0.3)})
	}
	return largest, solana.TokenAmount{UiAmount: ui(1000)}
}

func TestPhase2_FullScore(t *testing.T) {
	largest, supply := healthyHolders()
	c := NewChecker(
		&stubRPC{largest: largest, supply: supply},
		&stubRouter{solPrice: 100},
		&stubOracle{status: LockSafe},
		&stubVolume{grew: true, delta: 500},
		testConfig(),
	)

	report := c.Phase2(context.Background(), testMint, "pool1", "sig1", 250_000)
	if report.Score != 4 {
		t.Errorf("score = %v, want 4 (%+v)", report.Score, report)
	}
	if !report.HoldersOK || !report.VolumeGrew || !report.MarketCapOK || report.LockScore != 1 {
		t.Errorf("sub-results: %+v", report)
	}
	if report.HolderCount != 25 {
		t.Errorf("holder count = %d, want 25", report.HolderCount)
	}
}

func TestPhase2_RiskyLockHalfPoint(t *testing.T) {
	largest, supply := healthyHolders()
	c := NewChecker(
		&stubRPC{largest: largest, supply: supply},
		&stubRouter{solPrice: 100},
		&stubOracle{status: LockRisky},
		&stubVolume{grew: false, delta: 0},
		testConfig(),
	)

	report := c.Phase2(context.Background(), testMint, "pool1", "sig1", 5_000_000)
	// 0.5 lock + 1 holders + 0 volume + 0 mcap.
	if report.Score != 1.5 {
		t.Errorf("score = %v, want 1.5", report.Score)
	}
	if report.MarketCapOK {
		t.Error("market cap over ceiling should fail")
	}
}

func TestPhase2_OracleErrorScoresZero(t *testing.T) {
	largest, supply := healthyHolders()
	c := NewChecker(
		&stubRPC{largest: largest, supply: supply},
		&stubRouter{solPrice: 100},
		&stubOracle{err: fmt.Errorf("oracle down")},
		&stubVolume{grew: true, delta: 100},
		testConfig(),
	)

	report := c.Phase2(context.Background(), testMint, "pool1", "sig1", 100_000)
	if report.LockScore != 0 {
		t.Errorf("lock score = %v, want 0 on oracle error", report.LockScore)
	}
	if report.Score != 3 {
		t.Errorf("score = %v, want 3", report.Score)
	}
}

func TestHolderDistribution(t *testing.T) {
	supply := solana.TokenAmount{UiAmount: ui(1000)}

	uniform := make([]solana.TokenAmount, 25)
	uniform[0] = solana.TokenAmount{UiAmount: ui(100)}
	for i := 1; i < 25; i++ {
		uniform[i] = solana.TokenAmount{UiAmount: ui(60)} // exactly 6% each
	}

	heavyTop5 := make([]solana.TokenAmount, 25)
	for i := 0; i < 5; i++ {
		heavyTop5[i] = solana.TokenAmount{UiAmount: ui(150 - float64(i))} // ~74% combined
	}
	for i := 5; i < 25; i++ {
		heavyTop5[i] = solana.TokenAmount{UiAmount: ui(3)}
	}

	whale := make([]solana.TokenAmount, 25)
	whale[0] = solana.TokenAmount{UiAmount: ui(400)} // 40%
	for i := 1; i < 25; i++ {
		whale[i] = solana.TokenAmount{UiAmount: ui(10)}
	}

	tests := []struct {
		name    string
		largest []solana.TokenAmount
		want    bool
	}{
		{"too few holders", make([]solana.TokenAmount, 5), false},
		{"top holder over 30 percent", whale, false},
		{"top five over 70 percent", heavyTop5, false},
		{"uniform bot distribution", uniform, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.largest {
				if tt.largest[i].UiAmount == nil {
					tt.largest[i].UiAmount = ui(1)
				}
			}
			c := NewChecker(&stubRPC{largest: tt.largest, supply: supply}, nil, nil, nil, testConfig())
			ok, _, _, err := c.holderDistribution(context.Background(), testMint)
			if err != nil {
				t.Fatalf("holderDistribution: %v", err)
			}
			if ok != tt.want {
				t.Errorf("ok = %v, want %v", ok, tt.want)
			}
		})
	}
}
