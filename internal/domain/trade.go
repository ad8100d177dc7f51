package domain

// TradeStatus is the persisted status of one trade record.
type TradeStatus string

const (
	// TradeFinalized marks a confirmed live buy that is still open.
	TradeFinalized TradeStatus = "FINALIZED"

	// TradeSelling marks a trade whose sell has been submitted but not confirmed.
	TradeSelling TradeStatus = "SELLING"

	// TradeSimulated marks an open paper trade.
	TradeSimulated TradeStatus = "SIMULATED"

	// TradeRecovered marks a trade adopted by wallet reconciliation.
	TradeRecovered TradeStatus = "RECOVERED"

	// TradeClosed is terminal.
	TradeClosed TradeStatus = "CLOSED"
)

// Open reports whether the status counts as an open position.
func (s TradeStatus) Open() bool {
	switch s {
	case TradeFinalized, TradeSelling, TradeSimulated, TradeRecovered:
		return true
	}
	return false
}

// TradeRecord is the persisted form of one trade.
type TradeRecord struct {
	TradeID       string
	Mint          string
	Status        TradeStatus
	EntryPriceUSD float64
	ExitPriceUSD  float64
	TokenAmount   float64
	SizeUSD       float64
	EntrySig      string
	ExitSig       string
	PnLPercent    float64
	Trigger       string
	OpenedAt      int64 // Unix timestamp (ms)
	ClosedAt      int64 // Unix timestamp (ms), zero while open
	Simulated     bool
}

// FailedSell records one sell attempt that failed before confirmation, tagged
// with the stage that failed so the retry sweep can target it.
type FailedSell struct {
	Mint      string
	Stage     string // "balance", "quote", "build", "submit"
	Reason    string
	Trigger   string // trigger of the sell that first failed, kept across retries
	Attempts  int
	LastTried int64 // Unix timestamp (ms)
	Terminal  bool  // zero balance or retries exhausted, never retried again
}
