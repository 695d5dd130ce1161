package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// snapshotEntry is the JSON form of one persisted key state.
type snapshotEntry struct {
	State     []byte    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// snapshotData is the on-disk snapshot layout.
type snapshotData struct {
	States  map[string]snapshotEntry `json:"states"`
	SavedAt time.Time                `json:"saved_at"`
}

// FileStore is a MemoryStore that survives restarts by snapshotting its
// contents to a JSON file on an interval and on Close. Decisions never wait
// on disk I/O; the snapshot is best-effort durability for single-node
// deployments.
type FileStore struct {
	*MemoryStore

	filePath      string
	flushInterval time.Duration

	flushMu   sync.Mutex
	flushDone chan struct{}
	closeOnce sync.Once
}

// NewFileStore creates a file-backed store, loading any existing snapshot.
// Expired entries in the snapshot are dropped on load.
func NewFileStore(path string, flushInterval, sweepInterval time.Duration) (*FileStore, error) {
	f := &FileStore{
		MemoryStore:   NewMemoryStore(sweepInterval),
		filePath:      path,
		flushInterval: flushInterval,
		flushDone:     make(chan struct{}),
	}

	if err := f.load(); err != nil {
		f.MemoryStore.Close()
		return nil, err
	}

	if flushInterval > 0 {
		go f.flushLoop()
	}
	return f, nil
}

// load restores state from the snapshot file if it exists.
func (f *FileStore) load() error {
	data, err := os.ReadFile(f.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w: %v", f.filePath, ErrUnavailable, err)
	}

	var snap snapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot %s: %w: %v", f.filePath, ErrUnavailable, err)
	}

	now := time.Now()
	for key, se := range snap.States {
		if !se.ExpiresAt.After(now) {
			continue
		}
		s := f.shardFor(key)
		s.mu.Lock()
		s.entries[key] = &entry{state: se.State, expiresAt: se.ExpiresAt}
		s.mu.Unlock()
	}
	return nil
}

// Flush writes the current state snapshot to disk atomically (temp file +
// rename).
func (f *FileStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	now := time.Now()
	snap := snapshotData{
		States:  make(map[string]snapshotEntry),
		SavedAt: now,
	}
	for _, s := range f.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if e.expiresAt.After(now) {
				snap.States[key] = snapshotEntry{State: e.state, ExpiresAt: e.expiresAt}
			}
		}
		s.mu.Unlock()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.filePath)
	tmp, err := os.CreateTemp(dir, ".ratelimit-snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, f.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// flushLoop snapshots the store on the configured interval.
func (f *FileStore) flushLoop() {
	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.flushDone:
			return
		case <-ticker.C:
			// Best effort; the next tick retries.
			_ = f.Flush(context.Background())
		}
	}
}

// Close stops background work and writes a final snapshot.
func (f *FileStore) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.flushDone)
		err = f.Flush(context.Background())
	})
	if cerr := f.MemoryStore.Close(); err == nil {
		err = cerr
	}
	return err
}
