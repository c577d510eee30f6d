// Package store provides crash-safe engine snapshot persistence using a
// JSON file.
//
// The full engine state (markets, rounds, positions, queues, treasuries)
// is stored as a single engine.json. Writes use atomic file replacement
// (write to .tmp, then rename) to prevent corruption from partial writes
// or crashes mid-save. The entry point saves a snapshot on shutdown and
// loads it on startup to restore state.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"roundpool/pkg/types"
)

const snapshotFile = "engine.json"

// Store persists engine snapshots to a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing engine.json
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// SaveSnapshot atomically persists an engine snapshot. It writes to a
// .tmp file first, then renames over the target to ensure the file is
// never left in a partial state (crash-safe).
func (s *Store) SaveSnapshot(snap *types.EngineSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(s.dir, snapshotFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot restores the last saved snapshot from disk.
// Returns nil, nil if none exists (fresh start).
func (s *Store) LoadSnapshot() (*types.EngineSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, snapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap types.EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
