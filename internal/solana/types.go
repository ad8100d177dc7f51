package solana

import (
	"math"
	"strconv"
)

// WSOLMint is the wrapped native coin mint.
const WSOLMint = "So11111111111111111111111111111111111111112"

// LamportsPerSOL is the native coin base unit.
const LamportsPerSOL = 1_000_000_000

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// TokenBalance is one pre/post token balance entry.
type TokenBalance struct {
	AccountIndex int         `json:"accountIndex"`
	Mint         string      `json:"mint"`
	Owner        string      `json:"owner"`
	Amount       TokenAmount `json:"uiTokenAmount"`
}

// TokenAmount is the RPC ui token amount shape.
type TokenAmount struct {
	Raw      string   `json:"amount"`
	Decimals int      `json:"decimals"`
	UiAmount *float64 `json:"uiAmount"`
}

// Units returns the whole-token amount, falling back to the raw integer
// string when the node omits uiAmount.
func (a TokenAmount) Units() float64 {
	if a.UiAmount != nil {
		return *a.UiAmount
	}
	raw, err := strconv.ParseFloat(a.Raw, 64)
	if err != nil {
		return 0
	}
	return raw / math.Pow10(a.Decimals)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
}

// TokenAccountEntry is one account from getTokenAccountsByOwner.
type TokenAccountEntry struct {
	Pubkey string
	Mint   string
	Amount TokenAmount
}

// MintInfo is the decoded SPL mint account.
type MintInfo struct {
	MintAuthority   string // empty when revoked
	FreezeAuthority string // empty when revoked
	Supply          uint64
	Decimals        int
}

// AssetInfo is the DAS view of a token used for mutability checks.
type AssetInfo struct {
	Mint    string
	Name    string
	Symbol  string
	Mutable bool
}

// SignatureStatus is one entry from getSignatureStatuses.
type SignatureStatus struct {
	Confirmations      *int
	ConfirmationStatus string // "processed", "confirmed", "finalized"
	Err                interface{}
}
