package testutil

import (
	"github.com/uiua-boo/registry/internal/registry/domain"
	"github.com/uiua-boo/registry/internal/storage"
)

// packageData holds all data for a package to be inserted.
type packageData struct {
	scope       string
	name        string
	description string
	versions    []versionData
}

// versionData holds data for one version of a package.
type versionData struct {
	version  string
	checksum string
	yanked   bool
	files    []fileData
}

func (v versionData) artifactKey(pkg *domain.Package) string {
	return storage.ArtifactKey(pkg.Scope(), pkg.Name(), v.version)
}

// fileData holds data for one file row of a version.
type fileData struct {
	path        string
	sizeBytes   int64
	mimeType    string
	previewable bool
}

func (f fileData) fileKey(pkg *domain.Package, version string) *string {
	if !f.previewable {
		return nil
	}
	key := storage.PreviewKey(pkg.Scope(), pkg.Name(), version, f.path)
	return &key
}

// PackageOption configures a fixture package.
type PackageOption func(*packageData)

// Description sets the package description.
func Description(description string) PackageOption {
	return func(p *packageData) { p.description = description }
}

// Version adds a committed version to the package. The highest stable
// non-yanked version becomes the package's latest-stable pointer.
func Version(version string, opts ...VersionOption) PackageOption {
	return func(p *packageData) {
		v := versionData{version: version, checksum: "cafebabe"}
		for _, opt := range opts {
			opt(&v)
		}
		p.versions = append(p.versions, v)
	}
}

// VersionOption configures a fixture version.
type VersionOption func(*versionData)

// Yanked marks the version as yanked.
func Yanked() VersionOption {
	return func(v *versionData) { v.yanked = true }
}

// Checksum sets the version's artifact checksum.
func Checksum(checksum string) VersionOption {
	return func(v *versionData) { v.checksum = checksum }
}

// File adds a previewable text file row to the version.
func File(path string, sizeBytes int64, mimeType string) VersionOption {
	return func(v *versionData) {
		v.files = append(v.files, fileData{path: path, sizeBytes: sizeBytes, mimeType: mimeType, previewable: true})
	}
}

// BinaryFile adds a non-previewable file row to the version.
func BinaryFile(path string, sizeBytes int64, mimeType string) VersionOption {
	return func(v *versionData) {
		v.files = append(v.files, fileData{path: path, sizeBytes: sizeBytes, mimeType: mimeType})
	}
}
