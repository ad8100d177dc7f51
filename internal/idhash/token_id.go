package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTokenID computes a deterministic token_id using SHA256.
// Formula: SHA256(mint|pool|trigger_signature)
// Returns hex-encoded hash (64 characters).
func ComputeTokenID(mint, pool, triggerSignature string) string {
	data := fmt.Sprintf("%s|%s|%s", mint, pool, triggerSignature)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
