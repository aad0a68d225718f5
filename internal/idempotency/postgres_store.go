package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists replays so idempotency survives restarts and is
// shared across relay instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createReplaysSQL = `
CREATE TABLE IF NOT EXISTS submission_replays (
    key TEXT PRIMARY KEY,
    status INT NOT NULL,
    body BYTEA NOT NULL,
    stored_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects with the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createReplaysSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Lookup(ctx context.Context, key string) (*Replay, error) {
	row := p.pool.QueryRow(ctx, `
SELECT status, body, stored_at, expires_at
FROM submission_replays
WHERE key = $1
`, key)

	var rec Replay
	if err := row.Scan(&rec.Status, &rec.Body, &rec.StoredAt, &rec.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if time.Now().After(rec.ExpiresAt) {
		go p.deleteKey(context.Background(), key)
		return nil, nil
	}
	return &rec, nil
}

func (p *PostgresStore) Remember(ctx context.Context, key string, replay Replay) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO submission_replays (key, status, body, stored_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE
SET status = EXCLUDED.status,
    body = EXCLUDED.body,
    stored_at = EXCLUDED.stored_at,
    expires_at = EXCLUDED.expires_at
`, key, replay.Status, replay.Body, replay.StoredAt, replay.ExpiresAt)
	return err
}

func (p *PostgresStore) deleteKey(ctx context.Context, key string) {
	_, _ = p.pool.Exec(ctx, `DELETE FROM submission_replays WHERE key = $1`, key)
}
