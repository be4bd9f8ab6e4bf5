package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore is a Store backed by a directory on the local filesystem.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed and returns a store
// rooted at it.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// keyPath maps a key to a filesystem path under the root. Keys that
// would escape the root are rejected.
func (s *FSStore) keyPath(key string) (string, error) {
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" || strings.HasPrefix(cleaned, "/") ||
		cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob %q: %w", key, err)
	}
	return true, nil
}

func (s *FSStore) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	// Write to a sibling temp file, then rename. Readers never observe a
	// partially written blob.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write blob %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store blob %q: %w", key, err)
	}
	return nil
}

func (s *FSStore) Move(ctx context.Context, src, dst string) error {
	srcPath, err := s.keyPath(src)
	if err != nil {
		return err
	}
	dstPath, err := s.keyPath(dst)
	if err != nil {
		return err
	}
	if _, err := os.Stat(srcPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("failed to move blob %q: %w", src, ErrNotFound)
		}
		return fmt.Errorf("failed to stat blob %q: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0700); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return fmt.Errorf("failed to move blob %q to %q: %w", src, dst, err)
	}
	return nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	p, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %q: %w", key, err)
	}
	return nil
}

func (s *FSStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p) //nolint:gosec // G304: path is validated against the store root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open blob %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open blob %q: %w", key, err)
	}
	return f, nil
}

func (s *FSStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.GetStream(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	return data, nil
}
