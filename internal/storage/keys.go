package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// PendingKey returns a fresh key for an uploaded archive awaiting
// publication. Each call yields a unique key.
func PendingKey() string {
	return fmt.Sprintf("pending/%s.tar.gz", uuid.NewString())
}

// ArtifactKey returns the permanent key for a published version's archive.
func ArtifactKey(scope, name, version string) string {
	return fmt.Sprintf("artifact/%s/%s/%s.tar.gz", scope, name, version)
}

// PreviewKey returns the key holding the extracted preview of a single
// file inside a published version. path is the archive-relative file path.
func PreviewKey(scope, name, version, path string) string {
	return fmt.Sprintf("preview/%s/%s/%s/%s", scope, name, version, path)
}
