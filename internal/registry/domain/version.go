package domain

import (
	"time"

	"github.com/Masterminds/semver/v3"
)

// PackageVersion is one published version of a Package. Once committed it is
// immutable except for the yank flag; the pipeline never overwrites or
// deletes a version.
type PackageVersion struct {
	id          int64
	packageID   int64
	version     *semver.Version
	artifactKey *string
	checksum    *string
	isYanked    bool
	createdAt   time.Time
}

// NewPackageVersion creates an uncommitted PackageVersion for the given
// package. The artifact key is nil until the publish pipeline commits it.
func NewPackageVersion(packageID int64, version *semver.Version) *PackageVersion {
	return &PackageVersion{
		packageID: packageID,
		version:   version,
		createdAt: time.Now(),
	}
}

// ReconstitutePackageVersion creates a PackageVersion from existing data.
func ReconstitutePackageVersion(
	id, packageID int64,
	version *semver.Version,
	artifactKey, checksum *string,
	isYanked bool,
	createdAt time.Time,
) *PackageVersion {
	return &PackageVersion{
		id:          id,
		packageID:   packageID,
		version:     version,
		artifactKey: artifactKey,
		checksum:    checksum,
		isYanked:    isYanked,
		createdAt:   createdAt,
	}
}

// ID returns the database identifier, or 0 for unsaved versions.
func (v *PackageVersion) ID() int64 { return v.id }

// SetID assigns the database identifier after the first insert.
func (v *PackageVersion) SetID(id int64) { v.id = id }

// PackageID returns the ID of the owning package.
func (v *PackageVersion) PackageID() int64 { return v.packageID }

// Version returns the parsed semantic version.
func (v *PackageVersion) Version() *semver.Version { return v.version }

// ArtifactKey returns the blob key of the committed source archive, or nil
// if the version was never successfully committed.
func (v *PackageVersion) ArtifactKey() *string { return v.artifactKey }

// Checksum returns the lowercase hex BLAKE3-256 digest of the committed
// artifact, or nil if not recorded.
func (v *PackageVersion) Checksum() *string { return v.checksum }

// IsYanked reports whether the version has been withdrawn from resolution.
func (v *PackageVersion) IsYanked() bool { return v.isYanked }

// CreatedAt returns when this version was created.
func (v *PackageVersion) CreatedAt() time.Time { return v.createdAt }

// IsStable reports whether the version has no prerelease component.
func (v *PackageVersion) IsStable() bool {
	return v.version.Prerelease() == ""
}

// SetArtifact records the committed artifact blob key and its checksum.
func (v *PackageVersion) SetArtifact(key, checksum string) {
	v.artifactKey = &key
	v.checksum = &checksum
}

// SetYanked flips the yank flag, the only mutation allowed after commit.
func (v *PackageVersion) SetYanked(yanked bool) {
	v.isYanked = yanked
}
