package domain

// Source identifies how a candidate signature entered the intake layer.
type Source string

const (
	// SourceLive marks signatures observed on the live log subscription.
	SourceLive Source = "LIVE"

	// SourcePrefetch marks signatures fetched by the background lookup of
	// transactions that occurred just before the triggering signature.
	SourcePrefetch Source = "PREFETCH"
)

// Valid checks if the source is a known value.
func (s Source) Valid() bool {
	return s == SourceLive || s == SourcePrefetch
}

// CandidateEvent is one observed on-chain signature that may indicate a new
// liquidity pool. The transaction payload is fetched lazily by the pipeline.
type CandidateEvent struct {
	Signature  string
	Mint       string // resolved by the pipeline, empty until then
	Slot       int64
	Source     Source
	ObservedAt int64 // Unix timestamp (ms)
}
