package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(mint|entry_signature|opened_at)
// Simulated trades carry a synthetic entry signature, so the formula holds
// for both modes.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(mint, entrySignature string, openedAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, entrySignature, openedAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
