package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rate_limit_states (
	key        TEXT PRIMARY KEY,
	state      BYTEA,
	expires_at BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_rate_limit_states_expires_at
	ON rate_limit_states (expires_at);
`

// PostgresStore persists key state in PostgreSQL. Per-key serialization
// comes from a SELECT ... FOR UPDATE row lock inside the update
// transaction; a placeholder row is inserted first so the lock exists even
// for keys never seen before.
type PostgresStore struct {
	pool *pgxpool.Pool

	sweepInterval time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

// NewPostgresStore connects to PostgreSQL and initializes the schema.
func NewPostgresStore(ctx context.Context, dsn string, sweepInterval time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w: %v", ErrUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w: %v", ErrUnavailable, err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w: %v", ErrUnavailable, err)
	}

	s := &PostgresStore{
		pool:          pool,
		sweepInterval: sweepInterval,
		done:          make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweep()
	}
	return s, nil
}

// Update applies fn to the state for key under a row lock.
func (s *PostgresStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// Ensure a lockable row exists. NULL state marks "never decided".
	if _, err := tx.Exec(ctx,
		`INSERT INTO rate_limit_states (key, state, expires_at) VALUES ($1, NULL, 0)
		 ON CONFLICT (key) DO NOTHING`, key,
	); err != nil {
		return fmt.Errorf("ensure state row: %w: %v", ErrUnavailable, err)
	}

	now := time.Now()
	var cur []byte
	var expiresAt int64
	err = tx.QueryRow(ctx,
		`SELECT state, expires_at FROM rate_limit_states WHERE key = $1 FOR UPDATE`, key,
	).Scan(&cur, &expiresAt)
	if err != nil {
		return fmt.Errorf("lock state row: %w: %v", ErrUnavailable, err)
	}

	found := cur != nil && expiresAt > now.UnixNano()
	if !found {
		cur = nil
	}

	next, err := fn(cur, found)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE rate_limit_states SET state = $2, expires_at = $3 WHERE key = $1`,
		key, next, now.Add(ttl).UnixNano(),
	); err != nil {
		return fmt.Errorf("write state: %w: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit state update: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the unexpired state for key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var state []byte
	var expiresAt int64
	err := s.pool.QueryRow(ctx,
		`SELECT state, expires_at FROM rate_limit_states WHERE key = $1`, key,
	).Scan(&state, &expiresAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("read state: %w: %v", ErrUnavailable, err)
	case state == nil || expiresAt <= time.Now().UnixNano():
		return nil, false, nil
	}
	return state, true, nil
}

// Delete removes the state for key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM rate_limit_states WHERE key = $1`, key,
	); err != nil {
		return fmt.Errorf("delete state: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping verifies the pool can reach the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Stats counts unexpired rows.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var keys int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rate_limit_states WHERE state IS NOT NULL AND expires_at > $1`,
		time.Now().UnixNano(),
	).Scan(&keys)
	if err != nil {
		return Stats{}, fmt.Errorf("count states: %w: %v", ErrUnavailable, err)
	}
	return Stats{Keys: keys}, nil
}

// Close stops the sweeper and closes the pool.
func (s *PostgresStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.pool.Close()
	return nil
}

// sweep periodically deletes expired rows.
func (s *PostgresStore) sweep() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, _ = s.pool.Exec(ctx, `DELETE FROM rate_limit_states WHERE expires_at <= $1`, time.Now().UnixNano())
			cancel()
		}
	}
}
