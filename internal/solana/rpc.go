package solana

import "context"

// RPCClient defines the Solana RPC HTTP surface the pipeline consumes.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature. Returns nil when
	// the node does not know the signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetAccountInfo retrieves account info by public key. Returns nil if not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountsByOwner lists token accounts held by an owner,
	// optionally filtered to one mint.
	GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccountEntry, error)

	// GetTokenSupply returns the supply of a mint in whole tokens plus decimals.
	GetTokenSupply(ctx context.Context, mint string) (TokenAmount, error)

	// GetTokenLargestAccounts returns the largest token accounts of a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAmount, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetMintInfo fetches and decodes the SPL mint account.
	GetMintInfo(ctx context.Context, mint string) (*MintInfo, error)

	// GetAsset fetches DAS asset metadata (mutability, name, symbol).
	GetAsset(ctx context.Context, mint string) (*AssetInfo, error)

	// GetSignatureStatuses returns confirmation statuses for signatures.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// SendTransaction submits a base64-encoded signed transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
}
