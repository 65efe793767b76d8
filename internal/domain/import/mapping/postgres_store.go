package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the part of pgxpool.Pool the template store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads templates managed elsewhere from the mapping_templates table.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore creates a template store over db
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetTemplate(ctx context.Context, name string) (*Template, error) {
	query := `SELECT definition FROM mapping_templates WHERE name = $1`
	t, err := s.scanOne(ctx, query, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t, err
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string) (*Template, error) {
	if fingerprint == "" {
		return nil, nil
	}
	query := `
		SELECT definition FROM mapping_templates
		WHERE fingerprint = $1
		ORDER BY updated_at DESC, name
		LIMIT 1
	`
	t, err := s.scanOne(ctx, query, fingerprint)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg string) (*Template, error) {
	var definition []byte
	if err := s.db.QueryRow(ctx, query, arg).Scan(&definition); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load mapping template: %w", err)
	}

	var t Template
	if err := json.Unmarshal(definition, &t); err != nil {
		return nil, fmt.Errorf("%w: failed to decode stored definition: %w", ErrInvalidTemplate, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
