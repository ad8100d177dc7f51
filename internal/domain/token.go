package domain

// TokenStatus tracks where a token ended up in the decision pipeline.
type TokenStatus string

const (
	TokenDiscovered TokenStatus = "DISCOVERED"
	TokenRejected   TokenStatus = "REJECTED"
	TokenTraded     TokenStatus = "TRADED"
)

// TokenRecord is a distinct token under evaluation, created at the first
// liquidity pass. The mint address is immutable once set.
type TokenRecord struct {
	TokenID      string // deterministic, see idhash
	Mint         string
	Pool         string
	Dex          string
	FirstSeen    int64 // Unix timestamp (ms), block time of the token's first transaction
	DiscoveredAt int64 // Unix timestamp (ms)
	LiquidityUSD float64
	PriceUSD     float64
	MarketCapUSD float64
	RiskScore    float64 // phase-2 score 0..4, set once per evaluation cycle
	Status       TokenStatus
}
