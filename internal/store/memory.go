package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// shardCount trades memory for update parallelism across keys.
const shardCount = 64

// entry holds one key's serialized state and its expiry.
type entry struct {
	state     []byte
	expiresAt time.Time
}

// shard is one lock domain of the memory store. Holding the shard lock for
// the whole read-modify-write is what serializes concurrent updates to the
// same key.
type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// MemoryStore is the reference in-process Store. Keys are spread over a
// fixed set of mutex-guarded shards, and a background goroutine sweeps
// expired entries on the configured interval.
type MemoryStore struct {
	shards [shardCount]*shard

	sweepInterval time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

// NewMemoryStore creates a memory store. A positive sweepInterval starts a
// background eviction goroutine; zero disables sweeping (expired entries
// are still treated as absent on read).
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		sweepInterval: sweepInterval,
		done:          make(chan struct{}),
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	if sweepInterval > 0 {
		go m.sweep()
	}
	return m
}

func (m *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// Update applies fn to the state for key under the shard lock.
func (m *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var cur []byte
	found := false
	if e, ok := s.entries[key]; ok && e.expiresAt.After(now) {
		cur = e.state
		found = true
	}

	next, err := fn(cur, found)
	if err != nil {
		return err
	}

	s.entries[key] = &entry{state: next, expiresAt: now.Add(ttl)}
	return nil
}

// Get returns the unexpired state for key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.expiresAt.After(time.Now()) {
		return nil, false, nil
	}
	return e.state, true, nil
}

// Delete removes the state for key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Ping always succeeds for the in-process store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Stats counts live entries across all shards.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	now := time.Now()
	var keys int64
	for _, s := range m.shards {
		s.mu.Lock()
		for _, e := range s.entries {
			if e.expiresAt.After(now) {
				keys++
			}
		}
		s.mu.Unlock()
	}
	return Stats{Keys: keys}, nil
}

// Close stops the background sweep goroutine.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// sweep periodically evicts expired entries.
func (m *MemoryStore) sweep() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired(time.Now())
		}
	}
}

// evictExpired removes entries whose expiry has passed.
func (m *MemoryStore) evictExpired(now time.Time) {
	for _, s := range m.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if !e.expiresAt.After(now) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}
