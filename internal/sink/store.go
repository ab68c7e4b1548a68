package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get for a hash the store has never seen.
var ErrNotFound = errors.New("artifact not found in store")

// Store persists artifact content by hash.
//
// Design decision: We accept this interface and return the concrete
// FSStore so tests can swap in failing stores to exercise delivery
// retries without touching the filesystem.
type Store interface {
	// Put writes content under its hash. Writing the same hash twice
	// is a no-op.
	Put(hash string, content []byte) error

	// Get reads the content for a hash. Returns ErrNotFound when
	// absent.
	Get(hash string) ([]byte, error)

	// Exists reports whether a hash is present.
	Exists(hash string) (bool, error)
}

// FSStore is a content-addressed filesystem store. Blobs live at
// <root>/<hash[:2]>/<hash>; the two-character shard keeps any single
// directory from growing into the hundreds of thousands of entries.
type FSStore struct {
	root string
}

// NewFSStore creates the store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FSStore{root: dir}, nil
}

// path returns the blob path for a hash.
func (s *FSStore) path(hash string) string {
	return filepath.Join(s.root, hash[:2], hash)
}

// Put writes the blob atomically: temp file in the shard directory,
// then rename. A crash mid-write leaves a temp file, never a partial
// blob under the final name.
func (s *FSStore) Put(hash string, content []byte) error {
	if len(hash) < 3 {
		return fmt.Errorf("invalid artifact hash %q", hash)
	}

	final := s.path(hash)
	if _, err := os.Stat(final); err == nil {
		return nil
	}

	shard := filepath.Dir(final)
	if err := os.MkdirAll(shard, 0750); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(shard, "."+hash+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close() //nolint:errcheck // Write already failed
		_ = os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // Sync already failed
		_ = os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to finalize blob: %w", err)
	}
	return nil
}

// Get reads a blob.
func (s *FSStore) Get(hash string) ([]byte, error) {
	if len(hash) < 3 {
		return nil, fmt.Errorf("invalid artifact hash %q", hash)
	}
	content, err := os.ReadFile(s.path(hash)) //nolint:gosec // Path is derived from a hex hash
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return content, nil
}

// Exists reports blob presence without reading it.
func (s *FSStore) Exists(hash string) (bool, error) {
	if len(hash) < 3 {
		return false, fmt.Errorf("invalid artifact hash %q", hash)
	}
	if _, err := os.Stat(s.path(hash)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
