// Package testutil provides test database setup and fixture builders.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uiua-boo/registry/internal/infrastructure/sqlite"
)

// NewTestDB creates a fully migrated SQLite database in a temp directory.
// The database is closed automatically when the test finishes.
func NewTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
