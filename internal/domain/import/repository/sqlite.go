package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

const existingHashesSQLite = `
SELECT identity_hash FROM transactions
WHERE identity_hash IN (SELECT value FROM json_each(?))`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id            TEXT PRIMARY KEY,
	import_id     TEXT NOT NULL,
	date          TEXT NOT NULL,
	merchant      TEXT NOT NULL,
	amount        TEXT NOT NULL,
	amount_minor  INTEGER NOT NULL,
	currency      TEXT NOT NULL,
	account       TEXT NOT NULL,
	cost_center   TEXT,
	status        TEXT NOT NULL,
	identity_hash TEXT NOT NULL UNIQUE,
	source_line   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
`

// SQLiteStore implements TransactionStore on a single-file SQLite database.
// Amounts are stored as decimal text since SQLite has no exact numeric type.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database file is still usable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ExistingHashes binds the whole batch as one JSON array parameter, so a
// batch of any size is a single query.
func (s *SQLiteStore) ExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(hashes) == 0 {
		return found, nil
	}

	arg, err := json.Marshal(hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity hashes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, existingHashesSQLite, string(arg))
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

func (s *SQLiteStore) InsertMany(ctx context.Context, txs []*Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, import_id, date, merchant, amount, amount_minor, currency, account,
			cost_center, status, identity_hash, source_line, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, t := range txs {
		var costCenter sql.NullString
		if t.CostCenter != "" {
			costCenter = sql.NullString{String: t.CostCenter, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			t.ID.String(), t.ImportID.String(), t.Date.String(), t.Merchant,
			t.Amount.String(), money.ToMinorUnits(t.Amount, t.Currency), t.Currency, t.Account,
			costCenter, string(t.Status), t.IdentityHash, t.SourceLine, now, now,
		)
		if err != nil {
			if isSQLiteUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateIdentity, t.IdentityHash)
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateCostCenter(ctx context.Context, identityHash, costCenter string) (*Transaction, error) {
	costCenter = strings.TrimSpace(costCenter)
	var cc sql.NullString
	if costCenter != "" {
		cc = sql.NullString{String: costCenter, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET cost_center = ?, status = ?, updated_at = ? WHERE identity_hash = ?`,
		cc, string(DeriveStatus(costCenter)), time.Now().UTC().Format(time.RFC3339Nano), identityHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update cost center: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.get(ctx, identityHash)
}

func (s *SQLiteStore) get(ctx context.Context, identityHash string) (*Transaction, error) {
	var (
		t                          Transaction
		id, importID, date, amount string
		costCenter                 sql.NullString
		status, createdAt          string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, import_id, date, merchant, amount, currency, account, cost_center,
			status, identity_hash, source_line, created_at
		FROM transactions WHERE identity_hash = ?`, identityHash,
	).Scan(&id, &importID, &date, &t.Merchant, &amount, &t.Currency, &t.Account, &costCenter,
		&status, &t.IdentityHash, &t.SourceLine, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse id: %w", err)
	}
	if t.ImportID, err = uuid.Parse(importID); err != nil {
		return nil, fmt.Errorf("failed to parse import id: %w", err)
	}
	if t.Date, err = civil.ParseDate(date); err != nil {
		return nil, fmt.Errorf("failed to parse date: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	t.CostCenter = costCenter.String
	t.Status = Status(status)
	return &t, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
