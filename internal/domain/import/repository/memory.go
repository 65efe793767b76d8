package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps transactions in process memory. It backs local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byHash map[string]*Transaction
	order  []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]*Transaction)}
}

func (s *MemoryStore) ExistingHashes(_ context.Context, hashes []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]struct{})
	for _, h := range hashes {
		if _, ok := s.byHash[h]; ok {
			found[h] = struct{}{}
		}
	}
	return found, nil
}

func (s *MemoryStore) InsertMany(_ context.Context, txs []*Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, ok := s.byHash[tx.IdentityHash]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, tx.IdentityHash)
		}
		if _, ok := seen[tx.IdentityHash]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, tx.IdentityHash)
		}
		seen[tx.IdentityHash] = struct{}{}
	}

	now := time.Now().UTC()
	for _, tx := range txs {
		stored := *tx
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		s.byHash[tx.IdentityHash] = &stored
		s.order = append(s.order, tx.IdentityHash)
	}
	return nil
}

func (s *MemoryStore) UpdateCostCenter(_ context.Context, identityHash, costCenter string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byHash[identityHash]
	if !ok {
		return nil, ErrNotFound
	}
	tx.SetCostCenter(costCenter)

	out := *tx
	return &out, nil
}

// All returns copies of every stored transaction in insertion order.
func (s *MemoryStore) All() []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Transaction, 0, len(s.order))
	for _, h := range s.order {
		tx := *s.byHash[h]
		out = append(out, &tx)
	}
	return out
}
