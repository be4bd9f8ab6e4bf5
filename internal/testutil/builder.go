package testutil

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"github.com/uiua-boo/registry/internal/infrastructure/sqlite"
	"github.com/uiua-boo/registry/internal/registry/domain"
)

// Builder accumulates registry test data and inserts it in dependency
// order: packages first, then versions with their files, then the
// latest-stable pointers.
type Builder struct {
	t        *testing.T
	db       *sqlite.DB
	packages []packageData
}

// NewBuilder creates a builder for the given test database.
func NewBuilder(t *testing.T, db *sqlite.DB) *Builder {
	t.Helper()
	return &Builder{t: t, db: db}
}

// WithPackage adds a package with optional configuration. Versions are
// added through the Version option.
func (b *Builder) WithPackage(scope, name string, opts ...PackageOption) *Builder {
	pkg := packageData{scope: scope, name: name}
	for _, opt := range opts {
		opt(&pkg)
	}
	b.packages = append(b.packages, pkg)
	return b
}

// Fixture gives tests access to the inserted entities. Packages are keyed
// by "scope/name", versions by "scope/name@version".
type Fixture struct {
	Packages map[string]*domain.Package
	Versions map[string]*domain.PackageVersion
}

// Package returns the inserted package for "scope/name", failing the test
// when it was never added.
func (f *Fixture) Package(t *testing.T, fullName string) *domain.Package {
	t.Helper()
	pkg, ok := f.Packages[fullName]
	require.True(t, ok, "no fixture package %s", fullName)
	return pkg
}

// Version returns the inserted version for "scope/name@version", failing
// the test when it was never added.
func (f *Fixture) Version(t *testing.T, ref string) *domain.PackageVersion {
	t.Helper()
	version, ok := f.Versions[ref]
	require.True(t, ok, "no fixture version %s", ref)
	return version
}

// Build inserts all accumulated data and returns the fixture.
func (b *Builder) Build() *Fixture {
	b.t.Helper()
	fixture := &Fixture{
		Packages: make(map[string]*domain.Package),
		Versions: make(map[string]*domain.PackageVersion),
	}

	packages := b.db.PackageRepository()
	versions := b.db.VersionRepository()
	files := b.db.FileRepository()

	for _, data := range b.packages {
		pkg := domain.NewPackage(data.scope, data.name)
		if data.description != "" {
			pkg.SetDescription(data.description)
		}
		require.NoError(b.t, packages.Save(pkg))
		fixture.Packages[pkg.FullName()] = pkg

		var latestStable *domain.PackageVersion
		for _, vd := range data.versions {
			parsed, err := semver.StrictNewVersion(vd.version)
			require.NoError(b.t, err, "fixture version %q", vd.version)

			pv := domain.NewPackageVersion(pkg.ID(), parsed)
			pv.SetArtifact(vd.artifactKey(pkg), vd.checksum)
			require.NoError(b.t, versions.Create(pv))
			if vd.yanked {
				require.NoError(b.t, versions.SetYanked(pv.ID(), true))
				pv.SetYanked(true)
			}
			fixture.Versions[pkg.FullName()+"@"+vd.version] = pv

			for _, fd := range vd.files {
				file := domain.NewPackageVersionFile(
					pv.ID(), fd.path, fd.sizeBytes, fd.fileKey(pkg, vd.version), fd.mimeType, fd.previewable)
				require.NoError(b.t, files.Create(file))
			}

			if pv.IsStable() && !vd.yanked &&
				(latestStable == nil || parsed.GreaterThan(latestStable.Version())) {
				latestStable = pv
			}
		}
		if latestStable != nil {
			pkg.SetLatestStableVersion(latestStable.ID())
			require.NoError(b.t, packages.Save(pkg))
		}
	}
	return fixture
}
