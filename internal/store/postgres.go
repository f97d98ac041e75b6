package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	db DB
}

func NewPostgres(db DB) Store {
	return &postgresStore{db: db}
}

func (p *postgresStore) Get(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value
		FROM checkout_service.kv_entries
		WHERE key = $1
	`

	var value string
	err := p.db.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("repository: failed to select kv entry %s: %w", key, err)
	}

	return value, nil
}

func (p *postgresStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO checkout_service.kv_entries (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.Exec(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("repository: failed to upsert kv entry")
		return fmt.Errorf("repository: failed to upsert kv entry %s: %w", key, err)
	}

	return nil
}

func (p *postgresStore) Delete(ctx context.Context, key string) error {
	query := `
		DELETE FROM checkout_service.kv_entries
		WHERE key = $1
	`

	if _, err := p.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("repository: failed to delete kv entry %s: %w", key, err)
	}

	return nil
}
