// Package wallet holds the trading keypair and answers balance queries.
package wallet

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-sniper/internal/solana"
)

// Wallet wraps an ed25519 keypair and a balance source.
type Wallet struct {
	priv   ed25519.PrivateKey
	pubkey string
	rpc    solana.RPCClient
}

// New decodes a base58 secret key. Both 64-byte keypairs and 32-byte seeds
// are accepted.
func New(secretBase58 string, rpc solana.RPCClient) (*Wallet, error) {
	raw, err := base58.Decode(secretBase58)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("secret key must be %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}

	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		priv:   priv,
		pubkey: base58.Encode(pub),
		rpc:    rpc,
	}, nil
}

// Pubkey returns the base58 public key.
func (w *Wallet) Pubkey() string { return w.pubkey }

// Sign signs a message with the wallet key.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}

// SOLBalance returns the wallet's native balance in SOL.
func (w *Wallet) SOLBalance(ctx context.Context) (float64, error) {
	lamports, err := w.rpc.GetBalance(ctx, w.pubkey)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return float64(lamports) / solana.LamportsPerSOL, nil
}

// TokenBalance returns the wallet's whole-token balance for a mint,
// zero when no token account exists.
func (w *Wallet) TokenBalance(ctx context.Context, mint string) (float64, error) {
	accounts, err := w.rpc.GetTokenAccountsByOwner(ctx, w.pubkey, mint)
	if err != nil {
		return 0, fmt.Errorf("get token accounts: %w", err)
	}

	var total float64
	for _, acc := range accounts {
		total += acc.Amount.Units()
	}
	return total, nil
}

// TokenBalances returns every SPL token the wallet holds, keyed by mint.
func (w *Wallet) TokenBalances(ctx context.Context) (map[string]float64, error) {
	accounts, err := w.rpc.GetTokenAccountsByOwner(ctx, w.pubkey, "")
	if err != nil {
		return nil, fmt.Errorf("get token accounts: %w", err)
	}

	balances := make(map[string]float64, len(accounts))
	for _, acc := range accounts {
		balances[acc.Mint] += acc.Amount.Units()
	}
	return balances, nil
}

// AssociatedTokenAccount derives the wallet's ATA for a mint.
func (w *Wallet) AssociatedTokenAccount(mint string) (string, error) {
	return solana.DeriveAssociatedTokenAccount(w.pubkey, mint)
}
