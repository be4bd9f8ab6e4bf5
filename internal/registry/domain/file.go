package domain

import "time"

// PackageVersionFile is one archive entry of a committed PackageVersion.
// Rows and their optional preview blobs are created atomically with the
// parent version and never mutated afterward.
type PackageVersionFile struct {
	id               int64
	packageVersionID int64
	path             string
	sizeBytes        int64
	fileKey          *string
	mimeType         string
	isPreviewable    bool
	createdAt        time.Time
}

// NewPackageVersionFile creates a file record for the given version. The
// path must already be normalized and slash-separated. fileKey is nil for
// files that were not written to the blob store.
func NewPackageVersionFile(packageVersionID int64, path string, sizeBytes int64, fileKey *string, mimeType string, isPreviewable bool) *PackageVersionFile {
	return &PackageVersionFile{
		packageVersionID: packageVersionID,
		path:             path,
		sizeBytes:        sizeBytes,
		fileKey:          fileKey,
		mimeType:         mimeType,
		isPreviewable:    isPreviewable,
		createdAt:        time.Now(),
	}
}

// ReconstitutePackageVersionFile creates a PackageVersionFile from existing data.
func ReconstitutePackageVersionFile(
	id, packageVersionID int64,
	path string,
	sizeBytes int64,
	fileKey *string,
	mimeType string,
	isPreviewable bool,
	createdAt time.Time,
) *PackageVersionFile {
	return &PackageVersionFile{
		id:               id,
		packageVersionID: packageVersionID,
		path:             path,
		sizeBytes:        sizeBytes,
		fileKey:          fileKey,
		mimeType:         mimeType,
		isPreviewable:    isPreviewable,
		createdAt:        createdAt,
	}
}

// ID returns the database identifier, or 0 for unsaved rows.
func (f *PackageVersionFile) ID() int64 { return f.id }

// SetID assigns the database identifier after the first insert.
func (f *PackageVersionFile) SetID(id int64) { f.id = id }

// PackageVersionID returns the ID of the owning version.
func (f *PackageVersionFile) PackageVersionID() int64 { return f.packageVersionID }

// Path returns the normalized, slash-separated archive-relative path.
func (f *PackageVersionFile) Path() string { return f.path }

// SizeBytes returns the uncompressed size of the file.
func (f *PackageVersionFile) SizeBytes() int64 { return f.sizeBytes }

// FileKey returns the preview blob key, present only for previewable files.
func (f *PackageVersionFile) FileKey() *string { return f.fileKey }

// MimeType returns the detected mime type.
func (f *PackageVersionFile) MimeType() string { return f.mimeType }

// IsPreviewable reports whether the file was classified previewable at
// publish time.
func (f *PackageVersionFile) IsPreviewable() bool { return f.isPreviewable }

// CreatedAt returns when this row was created.
func (f *PackageVersionFile) CreatedAt() time.Time { return f.createdAt }
