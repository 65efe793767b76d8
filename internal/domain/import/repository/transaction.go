// Package repository holds the canonical transaction model and its storage backends.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status reflects whether a transaction still needs a cost center assigned.
type Status string

const (
	StatusProcessed      Status = "processed"
	StatusReviewRequired Status = "review_required"
)

// DeriveStatus is the single rule linking cost center and status.
func DeriveStatus(costCenter string) Status {
	if strings.TrimSpace(costCenter) != "" {
		return StatusProcessed
	}
	return StatusReviewRequired
}

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrDuplicateIdentity = errors.New("identity hash already stored")
)

// Transaction is the canonical record produced by an ingestion.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	ImportID     uuid.UUID       `json:"import_id"`
	Date         civil.Date      `json:"date"`
	Merchant     string          `json:"merchant"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Account      string          `json:"account"`
	CostCenter   string          `json:"cost_center,omitempty"`
	Status       Status          `json:"status"`
	IdentityHash string          `json:"identity_hash"`
	SourceLine   int             `json:"source_line"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SetCostCenter assigns the cost center and re-derives the status.
func (t *Transaction) SetCostCenter(costCenter string) {
	t.CostCenter = strings.TrimSpace(costCenter)
	t.Status = DeriveStatus(t.CostCenter)
}

// TransactionStore is the persistence boundary of the ingestion pipeline.
type TransactionStore interface {
	// ExistingHashes returns the subset of hashes that are already stored.
	ExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)

	// InsertMany stores all transactions or none of them.
	InsertMany(ctx context.Context, txs []*Transaction) error

	// UpdateCostCenter sets the cost center of the transaction with the given
	// identity hash and re-derives its status.
	UpdateCostCenter(ctx context.Context, identityHash, costCenter string) (*Transaction, error)
}
