package db

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(Config{
		DSN:              "host=db port=5432 user=u password=p dbname=statements sslmode=disable",
		MaxConns:         7,
		MinConns:         2,
		MaxConnLifetime:  time.Hour,
		StatementTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, "5000", pc.ConnConfig.RuntimeParams["statement_timeout"])
	assert.Equal(t, applicationName, pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "statements", pc.ConnConfig.Database)
}

func TestPoolConfig_InvalidDSN(t *testing.T) {
	_, err := poolConfig(Config{DSN: "postgres://%zz"})
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/00001_create_transactions.sql",
		"migrations/00002_create_mapping_templates.sql",
	}, names)

	body, err := fs.ReadFile(migrations, names[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "UNIQUE (identity_hash)")
}
