package domain

// PositionStatus tracks the lifecycle of one position. Transitions are
// monotonic: OPEN -> CLOSING -> CLOSED.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "OPEN"
	PositionClosing PositionStatus = "CLOSING"
	PositionClosed  PositionStatus = "CLOSED"
)

// Exit trigger reasons recorded when a position closes.
const (
	TriggerTakeProfit   = "TP"
	TriggerStopLoss     = "SL"
	TriggerTrailingStop = "TSL"
	TriggerTimeout      = "TIMEOUT"
	TriggerManual       = "MANUAL"
	TriggerLost         = "LOST"
	TriggerPostBuyScore = "POST_BUY_SCORE"
)

// Position is one open or closed trade tracked by the lifecycle tracker.
// At most one open Position exists per mint at a time.
type Position struct {
	TradeID       string
	Mint          string
	EntryPriceUSD float64
	TokenAmount   float64
	SizeUSD       float64
	PeakPriceUSD  float64
	EntrySig      string
	ExitSig       string
	Status        PositionStatus
	Trigger       string
	OpenedAt      int64 // Unix timestamp (ms)
	ClosedAt      int64 // Unix timestamp (ms), zero while open
	Simulated     bool
	Recovered     bool // adopted by reconciliation rather than bought
}
