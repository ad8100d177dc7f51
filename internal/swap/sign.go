package swap

import (
	"encoding/base64"
	"fmt"
)

// Signer signs transaction messages. Satisfied by *wallet.Wallet.
type Signer interface {
	Pubkey() string
	Sign(message []byte) []byte
}

const signatureLen = 64

// SignTransaction fills the fee payer signature slot of an unsigned base64
// transaction. The router builds transactions with the user as fee payer,
// so the first slot is ours.
func SignTransaction(txBase64 string, signer Signer) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	numSigs, offset, err := decodeCompactU16(raw)
	if err != nil {
		return "", fmt.Errorf("read signature count: %w", err)
	}
	if numSigs == 0 {
		return "", fmt.Errorf("transaction has no signature slots")
	}

	msgStart := offset + numSigs*signatureLen
	if msgStart >= len(raw) {
		return "", fmt.Errorf("transaction truncated: %d bytes, need %d for %d signatures", len(raw), msgStart, numSigs)
	}

	sig := signer.Sign(raw[msgStart:])
	if len(sig) != signatureLen {
		return "", fmt.Errorf("unexpected signature length %d", len(sig))
	}
	copy(raw[offset:offset+signatureLen], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// decodeCompactU16 reads the shortvec length prefix used by the wire format.
func decodeCompactU16(data []byte) (value, size int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("truncated compact-u16")
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}
