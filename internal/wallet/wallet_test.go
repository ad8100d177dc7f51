package wallet

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"

	"solana-sniper/internal/solana"
)

// stubRPC overrides only the methods the wallet touches.
type stubRPC struct {
	solana.RPCClient
	lamports uint64
	accounts []solana.TokenAccountEntry
}

func (s *stubRPC) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	return s.lamports, nil
}

func (s *stubRPC) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]solana.TokenAccountEntry, error) {
	if mint == "" {
		return s.accounts, nil
	}
	var out []solana.TokenAccountEntry
	for _, acc := range s.accounts {
		if acc.Mint == mint {
			out = append(out, acc)
		}
	}
	return out, nil
}

func testSecret(t *testing.T) (string, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	return base58.Encode(priv), pub
}

func TestNew_FullKeypair(t *testing.T) {
	secret, pub := testSecret(t)

	w, err := New(secret, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if w.Pubkey() != base58.Encode(pub) {
		t.Errorf("pubkey = %s, want %s", w.Pubkey(), base58.Encode(pub))
	}

	msg := []byte("test message")
	sig := w.Sign(msg)
	if !ed25519.Verify(pub, msg, sig) {
		t.Error("signature does not verify")
	}
}

func TestNew_SeedOnly(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := New(base58.Encode(priv.Seed()), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Pubkey() != base58.Encode(pub) {
		t.Errorf("seed-derived pubkey mismatch")
	}
}

func TestNew_BadSecret(t *testing.T) {
	if _, err := New("not-base58-!!!", nil); err == nil {
		t.Error("expected error for invalid base58")
	}
	if _, err := New(base58.Encode([]byte{1, 2, 3}), nil); err == nil {
		t.Error("expected error for wrong key length")
	}
}

func TestSOLBalance(t *testing.T) {
	secret, _ := testSecret(t)
	w, err := New(secret, &stubRPC{lamports: 2_500_000_000})
	if err != nil {
		t.Fatal(err)
	}

	bal, err := w.SOLBalance(context.Background())
	if err != nil {
		t.Fatalf("SOLBalance: %v", err)
	}
	if bal != 2.5 {
		t.Errorf("balance = %v, want 2.5", bal)
	}
}

func TestTokenBalances(t *testing.T) {
	ui1, ui2 := 100.0, 7.5
	rpc := &stubRPC{
		accounts: []solana.TokenAccountEntry{
			{Pubkey: "acc1", Mint: "mintA", Amount: solana.TokenAmount{UiAmount: &ui1}},
			{Pubkey: "acc2", Mint: "mintB", Amount: solana.TokenAmount{UiAmount: &ui2}},
		},
	}

	secret, _ := testSecret(t)
	w, err := New(secret, rpc)
	if err != nil {
		t.Fatal(err)
	}

	bal, err := w.TokenBalance(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("TokenBalance: %v", err)
	}
	if bal != 100.0 {
		t.Errorf("mintA balance = %v, want 100", bal)
	}

	all, err := w.TokenBalances(context.Background())
	if err != nil {
		t.Fatalf("TokenBalances: %v", err)
	}
	if len(all) != 2 || all["mintB"] != 7.5 {
		t.Errorf("unexpected balances: %v", all)
	}
}
