package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

const pgUniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool the Postgres store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var transactionColumns = []string{
	"id", "import_id", "date", "merchant", "amount", "amount_minor", "currency",
	"account", "cost_center", "status", "identity_hash", "source_line",
}

// PostgresStore implements TransactionStore on the transactions table.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a new Postgres-backed transaction store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// ExistingHashes runs a single ANY($1) lookup for the whole batch.
func (s *PostgresStore) ExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(hashes) == 0 {
		return found, nil
	}

	query := `SELECT identity_hash FROM transactions WHERE identity_hash = ANY($1)`
	rows, err := s.db.Query(ctx, query, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan identity hash: %w", err)
		}
		found[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read existing hashes: %w", err)
	}
	return found, nil
}

// InsertMany copies the batch inside one transaction. A unique violation on
// identity_hash rolls back the whole batch.
func (s *PostgresStore) InsertMany(ctx context.Context, txs []*Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns,
		pgx.CopyFromSlice(len(txs), func(i int) ([]any, error) {
			t := txs[i]
			var costCenter *string
			if t.CostCenter != "" {
				costCenter = &t.CostCenter
			}
			return []any{
				t.ID,
				t.ImportID,
				pgtype.Date{Time: t.Date.In(time.UTC), Valid: true},
				t.Merchant,
				numeric(t.Amount),
				money.ToMinorUnits(t.Amount, t.Currency),
				t.Currency,
				t.Account,
				costCenter,
				string(t.Status),
				t.IdentityHash,
				t.SourceLine,
			}, nil
		}),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, pgErr.Detail)
		}
		return fmt.Errorf("failed to copy transactions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}
	return nil
}

// UpdateCostCenter re-derives status in the same statement so the two columns never disagree.
func (s *PostgresStore) UpdateCostCenter(ctx context.Context, identityHash, costCenter string) (*Transaction, error) {
	query := `
		UPDATE transactions
		SET cost_center = NULLIF($2::text, ''),
			status = CASE WHEN NULLIF($2::text, '') IS NULL THEN 'review_required' ELSE 'processed' END,
			updated_at = now()
		WHERE identity_hash = $1
		RETURNING id, import_id, date, merchant, amount::text, currency, account,
			COALESCE(cost_center, ''), status, identity_hash, source_line, created_at
	`

	var (
		t      Transaction
		date   time.Time
		amount string
		status string
	)
	err := s.db.QueryRow(ctx, query, identityHash, strings.TrimSpace(costCenter)).Scan(
		&t.ID, &t.ImportID, &date, &t.Merchant, &amount, &t.Currency, &t.Account,
		&t.CostCenter, &status, &t.IdentityHash, &t.SourceLine, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update cost center: %w", err)
	}

	t.Date = civil.DateOf(date)
	t.Status = Status(status)
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}
	return &t, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
