package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harborapp/telemetry/internal/domain/providers"
)

// FileStore implements the StateStore interface on a plain directory, one
// file per key. This is the default backend: it mirrors the private local
// storage a client application gets from its platform, needs nothing
// installed, and the values are small enough that whole-file writes are
// cheap. Writes go through a temp file and rename so a crash never leaves a
// half-written value.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating the directory
// if needed. An empty dir places the store under the user config directory.
func NewFileStore(dir string) (providers.StateStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		dir = filepath.Join(base, "harbor-telemetry")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get retrieves the value for a key, or ErrNotFound.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, providers.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state key %s: %w", key, err)
	}
	return data, nil
}

// Set writes the value for a key atomically.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for key %s: %w", key, err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state key %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file for key %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state key %s: %w", key, err)
	}
	return nil
}

// Close implements StateStore. A file store holds no open resources.
func (s *FileStore) Close() error {
	return nil
}

// path maps a state key to a filename. Key names contain separators that
// are not filename-safe, so they are flattened.
func (s *FileStore) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	if name == "" {
		name = hex.EncodeToString([]byte(key))
	}
	return filepath.Join(s.dir, name+".json")
}
