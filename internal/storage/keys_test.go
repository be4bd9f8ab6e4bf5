package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingKey_Unique(t *testing.T) {
	a := PendingKey()
	b := PendingKey()

	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "pending/"))
	require.True(t, strings.HasSuffix(a, ".tar.gz"))
}

func TestArtifactKey(t *testing.T) {
	key := ArtifactKey("math", "linalg", "1.2.3")
	require.Equal(t, "artifact/math/linalg/1.2.3.tar.gz", key)
}

func TestPreviewKey(t *testing.T) {
	key := PreviewKey("math", "linalg", "1.2.3", "src/main.ua")
	require.Equal(t, "preview/math/linalg/1.2.3/src/main.ua", key)
}
