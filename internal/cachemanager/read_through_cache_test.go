package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type resolveInput struct {
	Scope string
	Name  string
	Range string
}

func newResolveCache(t *testing.T) *InMemoryCacheManager[resolvedVersion] {
	t.Helper()
	return NewInMemoryCacheManager[resolvedVersion]("resolve-cache", DefaultExpiration, DefaultCleanupInterval)
}

func TestReadThroughCache_Get_WithCacheDisabled(t *testing.T) {
	manager := newResolveCache(t)

	calls := 0
	readThroughCache := NewReadThroughCache[resolvedVersion, resolveInput](
		manager,
		func(ctx context.Context, input resolveInput) (resolvedVersion, error) {
			calls++
			return resolvedVersion{Version: "1.2.3"}, nil
		},
		true,
	)

	input := resolveInput{Scope: "math", Name: "linalg", Range: "^1.0.0"}

	got, err := readThroughCache.Get(context.Background(), "resolve:@math/linalg@^1.0.0", input, time.Minute)
	require.NoError(t, err)
	require.Equal(t, resolvedVersion{Version: "1.2.3"}, got)

	// Disabled cache goes to the loader every time and never populates the store.
	_, err = readThroughCache.Get(context.Background(), "resolve:@math/linalg@^1.0.0", input, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	_, ok := manager.Get(context.Background(), "resolve:@math/linalg@^1.0.0")
	require.False(t, ok)
}

func TestReadThroughCache_Get_WithValueInCache(t *testing.T) {
	manager := newResolveCache(t)
	cached := resolvedVersion{Version: "1.5.0", ArtifactKey: "artifact/math/linalg/1.5.0.tar.gz"}
	manager.Set(context.Background(), "resolve:@math/linalg@^1.0.0", cached, DefaultExpiration)

	readThroughCache := NewReadThroughCache[resolvedVersion, resolveInput](
		manager,
		func(ctx context.Context, input resolveInput) (resolvedVersion, error) {
			t.Fatal("loader should not be called on a cache hit")
			return resolvedVersion{}, nil
		},
		false,
	)

	got, err := readThroughCache.Get(
		context.Background(),
		"resolve:@math/linalg@^1.0.0",
		resolveInput{Scope: "math", Name: "linalg", Range: "^1.0.0"},
		time.Minute)
	require.NoError(t, err)
	require.Equal(t, cached, got)
}

func TestReadThroughCache_Get_EmptyCache(t *testing.T) {
	manager := newResolveCache(t)

	readThroughCache := NewReadThroughCache[resolvedVersion, resolveInput](
		manager,
		func(ctx context.Context, input resolveInput) (resolvedVersion, error) {
			return resolvedVersion{Version: "2.0.1"}, nil
		},
		false,
	)

	got, err := readThroughCache.Get(
		context.Background(),
		"resolve:@math/linalg@^2.0.0",
		resolveInput{Scope: "math", Name: "linalg", Range: "^2.0.0"},
		time.Minute)
	require.NoError(t, err)
	require.Equal(t, resolvedVersion{Version: "2.0.1"}, got)

	// Loader result is written back for the next read.
	cached, ok := manager.Get(context.Background(), "resolve:@math/linalg@^2.0.0")
	require.True(t, ok)
	require.Equal(t, resolvedVersion{Version: "2.0.1"}, cached)
}

func TestReadThroughCache_Get_LoaderError(t *testing.T) {
	manager := newResolveCache(t)

	readThroughCache := NewReadThroughCache[resolvedVersion, resolveInput](
		manager,
		func(ctx context.Context, input resolveInput) (resolvedVersion, error) {
			return resolvedVersion{}, errors.New("failed to query versions")
		},
		false,
	)

	_, err := readThroughCache.Get(
		context.Background(),
		"resolve:@math/linalg@^1.0.0",
		resolveInput{Scope: "math", Name: "linalg", Range: "^1.0.0"},
		time.Minute)
	require.Error(t, err)

	// Errors are never cached.
	_, ok := manager.Get(context.Background(), "resolve:@math/linalg@^1.0.0")
	require.False(t, ok)
}

func TestReadThroughCache_GetWithRefresh_WithValueInCache(t *testing.T) {
	manager := newResolveCache(t)
	cached := resolvedVersion{Version: "1.5.0"}
	manager.Set(context.Background(), "resolve:@math/linalg@^1.0.0", cached, DefaultExpiration)

	readThroughCache := NewReadThroughCache[resolvedVersion, resolveInput](
		manager,
		func(ctx context.Context, input resolveInput) (resolvedVersion, error) {
			t.Fatal("loader should not be called on a cache hit")
			return resolvedVersion{}, nil
		},
		false,
	)

	got, err := readThroughCache.GetWithRefresh(
		context.Background(),
		"resolve:@math/linalg@^1.0.0",
		resolveInput{Scope: "math", Name: "linalg", Range: "^1.0.0"},
		time.Minute)
	require.NoError(t, err)
	require.Equal(t, cached, got)
}

func TestReadThroughCache_GetWithRefresh_EmptyCache(t *testing.T) {
	manager := newResolveCache(t)

	readThroughCache := NewReadThroughCache[resolvedVersion, resolveInput](
		manager,
		func(ctx context.Context, input resolveInput) (resolvedVersion, error) {
			return resolvedVersion{Version: "0.9.0"}, nil
		},
		false,
	)

	got, err := readThroughCache.GetWithRefresh(
		context.Background(),
		"resolve:@math/linalg",
		resolveInput{Scope: "math", Name: "linalg"},
		time.Minute)
	require.NoError(t, err)
	require.Equal(t, resolvedVersion{Version: "0.9.0"}, got)

	cached, ok := manager.Get(context.Background(), "resolve:@math/linalg")
	require.True(t, ok)
	require.Equal(t, resolvedVersion{Version: "0.9.0"}, cached)
}

func TestReadThroughCache_GetWithRefresh_LoaderError(t *testing.T) {
	manager := newResolveCache(t)

	readThroughCache := NewReadThroughCache[resolvedVersion, resolveInput](
		manager,
		func(ctx context.Context, input resolveInput) (resolvedVersion, error) {
			return resolvedVersion{}, errors.New("failed to query versions")
		},
		false,
	)

	_, err := readThroughCache.GetWithRefresh(
		context.Background(),
		"resolve:@math/linalg",
		resolveInput{Scope: "math", Name: "linalg"},
		time.Minute)
	require.Error(t, err)
}
