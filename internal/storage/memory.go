package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemStore is an in-memory Store for tests. FailOn, when set, is
// consulted before every operation and lets tests inject failures at
// specific points in a pipeline.
type MemStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	FailOn func(op, key string) error
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) fail(op, key string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op, key)
}

func (s *MemStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.fail("exists", key); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *MemStore) Put(ctx context.Context, key string, r io.Reader) error {
	if err := s.fail("put", key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}

func (s *MemStore) Move(ctx context.Context, src, dst string) error {
	if err := s.fail("move", src); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[src]
	if !ok {
		return fmt.Errorf("failed to move blob %q: %w", src, ErrNotFound)
	}
	s.blobs[dst] = data
	delete(s.blobs, src)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	if err := s.fail("delete", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := s.GetBytes(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	if err := s.fail("get", key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("failed to open blob %q: %w", key, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Keys returns the stored keys in no particular order.
func (s *MemStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys
}
