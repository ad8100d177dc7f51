package solana

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
)

// buildMintAccount assembles raw SPL mint data for tests.
func buildMintAccount(mintAuth, freezeAuth []byte, supply uint64, decimals byte) string {
	raw := make([]byte, mintAccountLen)
	if mintAuth != nil {
		binary.LittleEndian.PutUint32(raw[0:4], 1)
		copy(raw[4:36], mintAuth)
	}
	binary.LittleEndian.PutUint64(raw[36:44], supply)
	raw[44] = decimals
	raw[45] = 1 // initialized
	if freezeAuth != nil {
		binary.LittleEndian.PutUint32(raw[46:50], 1)
		copy(raw[50:82], freezeAuth)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestParseMintAccount_AuthoritiesRevoked(t *testing.T) {
	data := buildMintAccount(nil, nil, 1_000_000_000, 9)

	info, err := ParseMintAccount(data)
	if err != nil {
		t.Fatalf("ParseMintAccount: %v", err)
	}
	if info.MintAuthority != "" {
		t.Errorf("MintAuthority = %q, want empty for revoked authority", info.MintAuthority)
	}
	if info.FreezeAuthority != "" {
		t.Errorf("FreezeAuthority = %q, want empty", info.FreezeAuthority)
	}
	if info.Supply != 1_000_000_000 {
		t.Errorf("Supply = %d, want 1000000000", info.Supply)
	}
	if info.Decimals != 9 {
		t.Errorf("Decimals = %d, want 9", info.Decimals)
	}
}

func TestParseMintAccount_LiveAuthorities(t *testing.T) {
	auth := make([]byte, 32)
	auth[0] = 7
	data := buildMintAccount(auth, auth, 42, 6)

	info, err := ParseMintAccount(data)
	if err != nil {
		t.Fatalf("ParseMintAccount: %v", err)
	}
	want := base58.Encode(auth)
	if info.MintAuthority != want {
		t.Errorf("MintAuthority = %q, want %q", info.MintAuthority, want)
	}
	if info.FreezeAuthority != want {
		t.Errorf("FreezeAuthority = %q, want %q", info.FreezeAuthority, want)
	}
}

func TestParseMintAccount_TooShort(t *testing.T) {
	data := base64.StdEncoding.EncodeToString(make([]byte, 10))
	if _, err := ParseMintAccount(data); err == nil {
		t.Error("ParseMintAccount should fail on short data")
	}
}

func TestParseTokenAccountMint(t *testing.T) {
	mint := make([]byte, 32)
	mint[31] = 1
	raw := make([]byte, tokenAccountLen)
	copy(raw[:32], mint)
	data := base64.StdEncoding.EncodeToString(raw)

	got, err := ParseTokenAccountMint(data)
	if err != nil {
		t.Fatalf("ParseTokenAccountMint: %v", err)
	}
	if want := base58.Encode(mint); got != want {
		t.Errorf("mint = %q, want %q", got, want)
	}
}

func TestParseTokenAccountAmount(t *testing.T) {
	raw := make([]byte, tokenAccountLen)
	binary.LittleEndian.PutUint64(raw[64:72], 123456789)
	data := base64.StdEncoding.EncodeToString(raw)

	got, err := ParseTokenAccountAmount(data)
	if err != nil {
		t.Fatalf("ParseTokenAccountAmount: %v", err)
	}
	if got != 123456789 {
		t.Errorf("amount = %d, want 123456789", got)
	}
}

func TestDeriveAssociatedTokenAccount(t *testing.T) {
	// Off-curve derivation must be deterministic and valid base58.
	addr, err := DeriveAssociatedTokenAccount(WSOLMint, TokenProgramID)
	if err != nil {
		t.Fatalf("DeriveAssociatedTokenAccount: %v", err)
	}
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		t.Fatalf("derived address %q is not a 32-byte base58 key", addr)
	}
	if isOnCurve(raw) {
		t.Error("derived address must be off-curve")
	}

	addr2, err := DeriveAssociatedTokenAccount(WSOLMint, TokenProgramID)
	if err != nil || addr2 != addr {
		t.Errorf("derivation not deterministic: %q vs %q", addr, addr2)
	}
}

func TestIsOnCurve_InvalidLength(t *testing.T) {
	if isOnCurve(make([]byte, 16)) {
		t.Error("short input should be off-curve")
	}
}
