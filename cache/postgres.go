package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Postgres persists cache entries in the kv_cache table so fallback state
// survives a restart. Schema is managed by the database package migrations.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const q = `SELECT value FROM kv_cache WHERE cache_key = $1`

	var value []byte
	if err := p.db.GetContext(ctx, &value, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetching cache entry[%s]: %w", key, err)
	}

	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const q = `
	INSERT INTO kv_cache (cache_key, value, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (cache_key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := p.db.ExecContext(ctx, q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upserting cache entry[%s]: %w", key, err)
	}

	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv_cache WHERE cache_key = $1`

	if _, err := p.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("deleting cache entry[%s]: %w", key, err)
	}

	return nil
}
