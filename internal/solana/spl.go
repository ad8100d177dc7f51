package solana

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program IDs.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// SPL account layout sizes.
const (
	mintAccountLen  = 82
	tokenAccountLen = 165
)

// ParseMintAccount decodes a base64 SPL mint account.
// Mint layout: authorityOption(4) | authority(32) | supply(8) | decimals(1) |
// initialized(1) | freezeOption(4) | freezeAuthority(32).
func ParseMintAccount(data string) (*MintInfo, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode mint account data: %w", err)
	}
	if len(raw) < mintAccountLen {
		return nil, fmt.Errorf("mint account data too short: %d", len(raw))
	}

	info := &MintInfo{
		Supply:   binary.LittleEndian.Uint64(raw[36:44]),
		Decimals: int(raw[44]),
	}
	if binary.LittleEndian.Uint32(raw[0:4]) != 0 {
		info.MintAuthority = base58.Encode(raw[4:36])
	}
	if binary.LittleEndian.Uint32(raw[46:50]) != 0 {
		info.FreezeAuthority = base58.Encode(raw[50:82])
	}
	return info, nil
}

// ParseTokenAccountMint parses base64 SPL token account data and returns the
// mint address. Token account layout: mint(32) | owner(32) | amount(8) | ...
func ParseTokenAccountMint(data string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode token account data: %w", err)
	}
	if len(raw) < 32 {
		return "", fmt.Errorf("token account data too short: %d", len(raw))
	}
	return base58.Encode(raw[:32]), nil
}

// ParseTokenAccountAmount parses the raw amount of an SPL token account.
func ParseTokenAccountAmount(data string) (uint64, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, fmt.Errorf("decode token account data: %w", err)
	}
	if len(raw) < 72 {
		return 0, fmt.Errorf("token account data too short: %d", len(raw))
	}
	return binary.LittleEndian.Uint64(raw[64:72]), nil
}

// DeriveAssociatedTokenAccount derives the ATA address for (wallet, mint).
func DeriveAssociatedTokenAccount(wallet, mint string) (string, error) {
	walletBytes, err := base58.Decode(wallet)
	if err != nil {
		return "", fmt.Errorf("decode wallet: %w", err)
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	tokenProgram, err := base58.Decode(TokenProgramID)
	if err != nil {
		return "", fmt.Errorf("decode token program: %w", err)
	}
	ataProgram, err := base58.Decode(AssociatedTokenProgramID)
	if err != nil {
		return "", fmt.Errorf("decode ata program: %w", err)
	}

	addr := derivePDA([][]byte{walletBytes, tokenProgram, mintBytes}, ataProgram)
	if addr == "" {
		return "", fmt.Errorf("no off-curve address for wallet %s mint %s", wallet, mint)
	}
	return addr, nil
}

// derivePDA finds the highest bump seed producing an off-curve address.
func derivePDA(seeds [][]byte, programID []byte) string {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

// isOnCurve reports whether the point decodes on the ed25519 curve.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
