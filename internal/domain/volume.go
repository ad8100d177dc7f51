package domain

// VolumeSide tags a pool transfer direction: tokens leaving the pool are a
// buy, tokens entering it are a sell.
type VolumeSide string

const (
	VolumeBuy  VolumeSide = "BUY"
	VolumeSell VolumeSide = "SELL"
)

// VolumeSample is one observed pool transfer in USD terms.
type VolumeSample struct {
	Timestamp int64 // Unix timestamp (ms)
	AmountUSD float64
	Side      VolumeSide
	Signature string
}

// VolumeSnapshot is an aggregated volume window persisted for a mint.
type VolumeSnapshot struct {
	Mint      string
	WindowSec int
	BuyUSD    float64
	SellUSD   float64
	TotalUSD  float64
	DeltaUSD  float64 // total minus the launch baseline
	Timestamp int64   // Unix timestamp (ms)
}

// PriceTrackPoint is one tracker evaluation written to the telemetry store.
type PriceTrackPoint struct {
	Mint       string
	Timestamp  int64 // Unix timestamp (ms)
	PriceUSD   float64
	PeakUSD    float64
	PnLPercent float64
}
