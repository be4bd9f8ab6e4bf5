package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenk/backoff"

	"github.com/uiua-boo/registry/internal/log"
)

// RetryStore decorates a Store with exponential backoff on transient
// failures. Missing-blob errors are permanent and never retried.
type RetryStore struct {
	inner      Store
	maxRetries uint64
	interval   time.Duration
}

func NewRetryStore(inner Store, maxRetries uint64, initialInterval time.Duration) *RetryStore {
	return &RetryStore{inner: inner, maxRetries: maxRetries, interval: initialInterval}
}

func (s *RetryStore) retry(ctx context.Context, op string, key string, fn func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.interval
	expBackoff.Reset()

	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		log.Warn(log.CatStorage, "retrying blob operation", "op", op, "key", key, "attempt", attempt, "error", err.Error())
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, s.maxRetries), ctx)
	return backoff.Retry(wrapped, b)
}

func (s *RetryStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.retry(ctx, "exists", key, func() error {
		var innerErr error
		ok, innerErr = s.inner.Exists(ctx, key)
		return innerErr
	})
	return ok, err
}

func (s *RetryStore) Put(ctx context.Context, key string, r io.Reader) error {
	// A consumed reader cannot be replayed, so only seekable readers get
	// a second attempt.
	seeker, canSeek := r.(io.Seeker)
	if !canSeek {
		return s.inner.Put(ctx, key, r)
	}
	return s.retry(ctx, "put", key, func() error {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		return s.inner.Put(ctx, key, r)
	})
}

func (s *RetryStore) Move(ctx context.Context, src, dst string) error {
	return s.retry(ctx, "move", src, func() error {
		return s.inner.Move(ctx, src, dst)
	})
}

func (s *RetryStore) Delete(ctx context.Context, key string) error {
	return s.retry(ctx, "delete", key, func() error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *RetryStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.retry(ctx, "get", key, func() error {
		var innerErr error
		rc, innerErr = s.inner.GetStream(ctx, key)
		return innerErr
	})
	return rc, err
}

func (s *RetryStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.retry(ctx, "get", key, func() error {
		var innerErr error
		data, innerErr = s.inner.GetBytes(ctx, key)
		return innerErr
	})
	return data, err
}
