package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newFSStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFSStore_PutAndGet(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "pending/abc.tar.gz", strings.NewReader("archive bytes"))
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "pending/abc.tar.gz")
	require.NoError(t, err)
	require.True(t, ok)

	data, err := store.GetBytes(ctx, "pending/abc.tar.gz")
	require.NoError(t, err)
	require.Equal(t, "archive bytes", string(data))

	rc, err := store.GetStream(ctx, "pending/abc.tar.gz")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	streamed, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "archive bytes", string(streamed))
}

func TestFSStore_PutOverwrites(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", strings.NewReader("one")))
	require.NoError(t, store.Put(ctx, "k", strings.NewReader("two")))

	data, err := store.GetBytes(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}

func TestFSStore_Move(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "pending/u.tar.gz", strings.NewReader("blob")))
	require.NoError(t, store.Move(ctx, "pending/u.tar.gz", "artifact/math/linalg/1.0.0.tar.gz"))

	ok, err := store.Exists(ctx, "pending/u.tar.gz")
	require.NoError(t, err)
	require.False(t, ok)

	data, err := store.GetBytes(ctx, "artifact/math/linalg/1.0.0.tar.gz")
	require.NoError(t, err)
	require.Equal(t, "blob", string(data))
}

// Moving a missing source is an error, unlike deletes.
func TestFSStore_MoveMissingSource(t *testing.T) {
	store := newFSStore(t)

	err := store.Move(context.Background(), "pending/missing.tar.gz", "artifact/a/b/1.0.0.tar.gz")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}

// Deleting a key that does not exist succeeds. Compensation paths rely
// on this when rolling back a partially completed publish.
func TestFSStore_DeleteMissingIsNoOp(t *testing.T) {
	store := newFSStore(t)

	err := store.Delete(context.Background(), "pending/missing.tar.gz")
	require.NoError(t, err)
}

func TestFSStore_GetMissing(t *testing.T) {
	store := newFSStore(t)

	_, err := store.GetBytes(context.Background(), "nope")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = store.GetStream(context.Background(), "nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

// Keys that would escape the store root are rejected on every operation.
func TestFSStore_RejectsTraversalKeys(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	for _, key := range []string{"../outside", "..", "/abs/path", "a/../../outside", "."} {
		err := store.Put(ctx, key, strings.NewReader("x"))
		require.Error(t, err, "key %q", key)
	}
}

func TestFSStore_NestedPreviewKeys(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	key := PreviewKey("math", "linalg", "1.0.0", "src/nested/matrix.ua")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("# matrix ops")))

	data, err := store.GetBytes(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "# matrix ops", string(data))
}
