package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rate_limit_states (
	key        TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_limit_states_expires_at
	ON rate_limit_states (expires_at);
`

// SQLiteStore persists key state in a SQLite database. All access runs on a
// single connection, which serializes read-modify-write transactions across
// keys; SQLite allows one writer at a time anyway, so the single connection
// costs nothing and removes SQLITE_BUSY handling.
type SQLiteStore struct {
	db *sql.DB

	sweepInterval time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore opens (and if needed initializes) a SQLite-backed store.
func NewSQLiteStore(dsn string, sweepInterval time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w: %v", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w: %v", ErrUnavailable, err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w: %v", ErrUnavailable, err)
	}

	s := &SQLiteStore{
		db:            db,
		sweepInterval: sweepInterval,
		done:          make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweep()
	}
	return s, nil
}

// Update applies fn to the state for key inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	now := time.Now()
	var cur []byte
	var expiresAt int64
	found := true
	err = tx.QueryRowContext(ctx,
		`SELECT state, expires_at FROM rate_limit_states WHERE key = ?`, key,
	).Scan(&cur, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		found = false
	case err != nil:
		return fmt.Errorf("read state: %w: %v", ErrUnavailable, err)
	case expiresAt <= now.UnixNano():
		cur, found = nil, false
	}

	next, err := fn(cur, found)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rate_limit_states (key, state, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET state = excluded.state, expires_at = excluded.expires_at`,
		key, next, now.Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("write state: %w: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state update: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the unexpired state for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var state []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT state, expires_at FROM rate_limit_states WHERE key = ?`, key,
	).Scan(&state, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("read state: %w: %v", ErrUnavailable, err)
	case expiresAt <= time.Now().UnixNano():
		return nil, false, nil
	}
	return state, true, nil
}

// Delete removes the state for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_states WHERE key = ?`, key,
	); err != nil {
		return fmt.Errorf("delete state: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite database: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Stats counts unexpired rows.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var keys int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limit_states WHERE expires_at > ?`, time.Now().UnixNano(),
	).Scan(&keys)
	if err != nil {
		return Stats{}, fmt.Errorf("count states: %w: %v", ErrUnavailable, err)
	}
	return Stats{Keys: keys}, nil
}

// Close stops the sweeper and closes the database.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.db.Close()
}

// sweep periodically deletes expired rows.
func (s *SQLiteStore) sweep() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			// Best effort; expired rows are invisible to readers either way.
			_, _ = s.db.Exec(`DELETE FROM rate_limit_states WHERE expires_at <= ?`, time.Now().UnixNano())
		}
	}
}
