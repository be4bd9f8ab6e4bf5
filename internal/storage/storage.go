// Package storage provides the blob store used for package archives and
// extracted file previews. Stores address opaque byte streams by key and
// know nothing about packages or versions.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Store is the blob store boundary. Keys are slash-separated paths
// relative to the store root.
type Store interface {
	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Put writes the contents of r under key, replacing any existing blob.
	Put(ctx context.Context, key string, r io.Reader) error

	// Move atomically relocates the blob at src to dst. It fails with
	// ErrNotFound when src does not exist.
	Move(ctx context.Context, src, dst string) error

	// Delete removes the blob under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// GetStream opens the blob under key for reading. The caller owns the
	// returned reader and must close it.
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)

	// GetBytes reads the whole blob under key into memory. Errors wrap
	// ErrNotFound when the key does not exist.
	GetBytes(ctx context.Context, key string) ([]byte, error)
}
