package domain

// Dex identifiers for pool classification.
const (
	DexRaydiumAMM  = "raydium_amm"
	DexRaydiumCLMM = "raydium_clmm"
	DexPumpFun     = "pumpfun"
	DexUnknown     = "unknown"
)

// LiquiditySnapshot is a pool reserve breakdown at a point in time. Snapshots
// are recomputed, never mutated in place.
type LiquiditySnapshot struct {
	Mint string
	Pool string
	Dex  string

	// Base-asset buckets in USD. Unknown mints land in OtherUSD and are
	// excluded from TotalUSD unless later priced.
	SolUSD   float64
	UsdcUSD  float64
	UsdtUSD  float64
	Usd1USD  float64
	OtherUSD float64

	TokenReserve  float64 // token-side reserve in whole tokens
	TokenDecimals int
	PriceUSD      float64 // derived from live pool reserves
	TokenSideUSD  float64 // TokenReserve * PriceUSD
	TotalUSD      float64 // SolUSD + stable buckets + TokenSideUSD

	Timestamp int64 // Unix timestamp (ms)
}

// BaseUSD returns the convertible base-asset liquidity, excluding OtherUSD.
func (s *LiquiditySnapshot) BaseUSD() float64 {
	return s.SolUSD + s.UsdcUSD + s.UsdtUSD + s.Usd1USD
}
