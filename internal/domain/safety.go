package domain

// SafetyReport is the persisted outcome of the delayed phase-2 re-score.
// Score is the sum of the four sub-checks, 0..4.
type SafetyReport struct {
	Mint         string
	LockScore    float64 // 1.0 locked, 0.5 risky, 0 unlocked
	HoldersOK    bool
	HolderCount  int
	TopHolderPct float64
	VolumeGrew   bool
	MarketCapOK  bool
	MarketCapUSD float64
	Score        float64
	CheckedAt    int64 // Unix timestamp (ms)
}
