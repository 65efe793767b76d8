// Package dedup splits a batch of hashed transactions into new and already seen records.
package dedup

import (
	"context"
	"fmt"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
)

// HashLookup answers which identity hashes are already stored.
type HashLookup interface {
	ExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)
}

// Result is the partition of one batch. Both slices keep input order.
type Result struct {
	New        []*repository.Transaction
	Duplicates []*repository.Transaction
}

// Filter issues exactly one existence query for the distinct hashes of txs and
// partitions them. The first occurrence of a hash inside the batch wins; later
// occurrences count as duplicates. An empty batch issues no query.
func Filter(ctx context.Context, lookup HashLookup, txs []*repository.Transaction) (*Result, error) {
	result := &Result{}
	if len(txs) == 0 {
		return result, nil
	}

	unique := make([]string, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx.IdentityHash]; ok {
			continue
		}
		seen[tx.IdentityHash] = struct{}{}
		unique = append(unique, tx.IdentityHash)
	}

	existing, err := lookup.ExistingHashes(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing hashes: %w", err)
	}

	accepted := make(map[string]struct{}, len(unique))
	for _, tx := range txs {
		_, stored := existing[tx.IdentityHash]
		_, taken := accepted[tx.IdentityHash]
		if stored || taken {
			result.Duplicates = append(result.Duplicates, tx)
			continue
		}
		accepted[tx.IdentityHash] = struct{}{}
		result.New = append(result.New, tx)
	}

	return result, nil
}
