package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS api_call_logs (
	id          uuid PRIMARY KEY,
	logged_at   timestamptz NOT NULL,
	method      text NOT NULL,
	endpoint    text NOT NULL,
	request     jsonb,
	response    jsonb,
	error       text NOT NULL DEFAULT '',
	duration_ms bigint NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS api_call_logs_logged_at_idx ON api_call_logs (logged_at DESC);`

// EnsureSchema creates the call-log table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
