package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetByMint retrieves all trades for a mint, ordered by opened_at ASC.
func (s *TradeStore) GetByMint(_ context.Context, mint string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.Mint == mint {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt < result[j].OpenedAt
	})

	return result, nil
}

// GetOpen retrieves all open trades for one execution mode, ordered by opened_at ASC.
func (s *TradeStore) GetOpen(_ context.Context, simulated bool) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.Simulated == simulated && t.Status.Open() {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt < result[j].OpenedAt
	})

	return result, nil
}

// SetStatus updates the status of an open trade. Returns ErrNotFound if not exists.
func (s *TradeStore) SetStatus(_ context.Context, tradeID string, status domain.TradeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[tradeID]
	if !exists {
		return storage.ErrNotFound
	}

	t.Status = status
	return nil
}

// SetEntry replaces the estimated entry price and token amount with
// values observed on chain. Returns ErrNotFound if not exists.
func (s *TradeStore) SetEntry(_ context.Context, tradeID string, entryPriceUSD, tokenAmount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[tradeID]
	if !exists {
		return storage.ErrNotFound
	}

	t.EntryPriceUSD = entryPriceUSD
	t.TokenAmount = tokenAmount
	return nil
}

// Close transitions a trade to CLOSED and records the exit fields.
// Returns ErrNotFound if not exists.
func (s *TradeStore) Close(_ context.Context, tradeID string, c storage.TradeClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[tradeID]
	if !exists {
		return storage.ErrNotFound
	}

	t.Status = domain.TradeClosed
	t.ExitPriceUSD = c.ExitPriceUSD
	t.ExitSig = c.ExitSig
	t.PnLPercent = c.PnLPercent
	t.Trigger = c.Trigger
	t.ClosedAt = c.ClosedAt
	return nil
}
