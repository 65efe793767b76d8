package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_ExistingHashes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT identity_hash FROM transactions WHERE identity_hash = ANY`).
		WithArgs([]string{"a", "b", "c"}).
		WillReturnRows(pgxmock.NewRows([]string{"identity_hash"}).AddRow("a").AddRow("c"))

	found, err := store.ExistingHashes(ctx, []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}, "c": {}}, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistingHashes_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	found, err := NewPostgresStore(mock).ExistingHashes(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query for an empty batch")
}

func TestPostgresStore_ExistingHashes_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT identity_hash FROM transactions`).
		WithArgs([]string{"a"}).
		WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresStore(mock).ExistingHashes(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresStore_InsertMany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	txs := []*Transaction{newTx("a", 5, "-4.50"), newTx("b", 6, "12")}

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, transactionColumns).WillReturnResult(2)
	mock.ExpectCommit()

	err = NewPostgresStore(mock).InsertMany(context.Background(), txs)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMany_UniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, transactionColumns).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Detail: "Key (identity_hash)=(a) already exists."})
	mock.ExpectRollback()

	err = NewPostgresStore(mock).InsertMany(context.Background(), []*Transaction{newTx("a", 5, "1")})

	assert.ErrorIs(t, err, ErrDuplicateIdentity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMany_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	require.NoError(t, NewPostgresStore(mock).InsertMany(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCostCenter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, importID := uuid.New(), uuid.New()
	created := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE transactions`).
		WithArgs("a", "Marketing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "import_id", "date", "merchant", "amount", "currency", "account",
			"cost_center", "status", "identity_hash", "source_line", "created_at",
		}).AddRow(
			id, importID, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), "Coffee Shop", "-4.50", "USD", "Default",
			"Marketing", "processed", "a", 2, created,
		))

	tx, err := NewPostgresStore(mock).UpdateCostCenter(context.Background(), "a", " Marketing ")

	require.NoError(t, err)
	assert.Equal(t, id, tx.ID)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 5}, tx.Date)
	assert.Equal(t, "-4.5", tx.Amount.String())
	assert.Equal(t, StatusProcessed, tx.Status)
	assert.Equal(t, "Marketing", tx.CostCenter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCostCenter_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`UPDATE transactions`).
		WithArgs("missing", "").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresStore(mock).UpdateCostCenter(context.Background(), "missing", "")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
