// Package storage provides file-based JSON storage for provider session state.
//
// Each device gets one JSON document under the state directory. Provider
// drivers use it to persist whatever they need to restore a paired session
// across restarts (account identity, credentials, cursors). Writes are
// atomic (temp file + rename) and guarded by a per-file flock so a second
// gateway process cannot corrupt state.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store provides per-device JSON state storage.
type Store struct {
	baseDir string
	mu      sync.RWMutex
	locks   map[string]*FileLock
}

// New creates a new Store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		locks:   make(map[string]*FileLock),
	}
}

// statePath returns the state file path for a device.
func (s *Store) statePath(deviceID string) string {
	return filepath.Join(s.baseDir, safeName(deviceID)+".json")
}

// safeName strips path separators so a device ID cannot escape the state dir.
func safeName(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, string(os.PathSeparator), "_")
	return strings.ReplaceAll(id, "..", "_")
}

// Get loads the state document for a device into v.
// Returns ErrNotFound when the device has no persisted state.
func (s *Store) Get(ctx context.Context, deviceID string, v any) error {
	data, err := os.ReadFile(s.statePath(deviceID))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read state: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return nil
}

// Put stores the state document for a device with file locking.
func (s *Store) Put(ctx context.Context, deviceID string, v any) error {
	filePath := s.statePath(deviceID)

	// Ensure directory exists
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Acquire lock
	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	// Marshal data
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temp file first, then rename (atomic operation)
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Delete removes the state document for a device. Deleting state that does
// not exist is not an error.
func (s *Store) Delete(ctx context.Context, deviceID string) error {
	filePath := s.statePath(deviceID)

	// Acquire lock
	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete state: %w", err)
	}

	return nil
}

// List returns the IDs of all devices with persisted state.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

// Exists reports whether a device has persisted state.
func (s *Store) Exists(ctx context.Context, deviceID string) bool {
	_, err := os.Stat(s.statePath(deviceID))
	return err == nil
}

// getLock returns a file lock for a path.
func (s *Store) getLock(filePath string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[filePath]
	if !ok {
		lock = NewFileLock(filePath)
		s.locks[filePath] = lock
	}

	return lock
}
