package intake

import "sync"

// SeenSet owns the "signatures seen" set and its lock. Entries are removed
// only during mint cleanup.
type SeenSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewSeenSet creates an empty seen-set.
func NewSeenSet() *SeenSet {
	return &SeenSet{set: make(map[string]struct{})}
}

// Add records a signature. Returns false if it was already present.
func (s *SeenSet) Add(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[sig]; ok {
		return false
	}
	s.set[sig] = struct{}{}
	return true
}

// Contains reports whether the signature has been seen.
func (s *SeenSet) Contains(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[sig]
	return ok
}

// Remove drops signatures from the set.
func (s *SeenSet) Remove(sigs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range sigs {
		delete(s.set, sig)
	}
}

// Len returns the number of signatures currently tracked.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

// MintSet owns the "mints already resolved" set and its lock.
type MintSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewMintSet creates an empty mint set.
func NewMintSet() *MintSet {
	return &MintSet{set: make(map[string]struct{})}
}

// Add records a mint. Returns false if it was already present.
func (s *MintSet) Add(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[mint]; ok {
		return false
	}
	s.set[mint] = struct{}{}
	return true
}

// Contains reports whether the mint is in the set.
func (s *MintSet) Contains(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[mint]
	return ok
}

// SigIndex owns the signature to mint mapping used for cleanup.
type SigIndex struct {
	mu sync.Mutex
	m  map[string]string
}

// NewSigIndex creates an empty index.
func NewSigIndex() *SigIndex {
	return &SigIndex{m: make(map[string]string)}
}

// Bind associates a signature with a mint.
func (x *SigIndex) Bind(sig, mint string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.m[sig] = mint
}

// MintOf returns the mint bound to a signature, empty if unbound.
func (x *SigIndex) MintOf(sig string) string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.m[sig]
}

// DropMint removes all entries bound to the mint and returns the removed
// signatures.
func (x *SigIndex) DropMint(mint string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	var sigs []string
	for sig, m := range x.m {
		if m == mint {
			sigs = append(sigs, sig)
			delete(x.m, sig)
		}
	}
	return sigs
}
