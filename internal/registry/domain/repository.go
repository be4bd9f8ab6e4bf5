package domain

// PackageRepository defines the persistence interface for Package entities.
// Relations are never loaded implicitly; callers fetch versions and files
// through the dedicated repositories.
type PackageRepository interface {
	// Save persists a package. For new packages (ID == 0) this inserts a
	// row and sets the ID; otherwise it updates the existing row.
	Save(pkg *Package) error

	// FindByID retrieves a package by its database ID. Returns nil, nil
	// when no such package exists.
	FindByID(id int64) (*Package, error)

	// FindByScopeAndName retrieves a package by its (scope, name) identity.
	// Returns nil, nil when no such package exists.
	FindByScopeAndName(scope, name string) (*Package, error)
}

// VersionRepository defines the persistence interface for PackageVersion
// entities.
type VersionRepository interface {
	// Create inserts a version row and sets its ID. The (packageID,
	// version) pair must be unique.
	Create(version *PackageVersion) error

	// FindByID retrieves a version by its database ID. Returns nil, nil
	// when no such version exists.
	FindByID(id int64) (*PackageVersion, error)

	// FindByPackageAndVersion retrieves a version by exact version string
	// within a package. Returns nil, nil when no such version exists.
	FindByPackageAndVersion(packageID int64, version string) (*PackageVersion, error)

	// ListByPackage retrieves all versions of a package, newest row first.
	ListByPackage(packageID int64) ([]*PackageVersion, error)

	// SetYanked updates the yank flag, the only post-commit mutation.
	SetYanked(id int64, yanked bool) error
}

// FileRepository defines the persistence interface for PackageVersionFile
// entities.
type FileRepository interface {
	// Create inserts a file row and sets its ID. The (packageVersionID,
	// path) pair must be unique.
	Create(file *PackageVersionFile) error

	// ListByVersion retrieves all files of a version ordered by path.
	ListByVersion(packageVersionID int64) ([]*PackageVersionFile, error)
}

// JobRepository defines the persistence interface for PublishJob entities.
type JobRepository interface {
	// Save persists a job. For new jobs (ID == 0) this inserts a row and
	// sets the ID; otherwise it updates the existing row.
	Save(job *PublishJob) error

	// FindByID retrieves a job by its database ID. Returns JobNotFoundError
	// when no such job exists.
	FindByID(id int64) (*PublishJob, error)

	// FindActiveByPackage retrieves the non-terminal job for a package, if
	// any. Returns nil, nil when every job for the package is terminal.
	FindActiveByPackage(packageID int64) (*PublishJob, error)
}

// Tx is a relational transaction scope. Repositories obtained from it see
// uncommitted writes; readers outside the transaction never observe a
// version without its full file set.
type Tx interface {
	Packages() PackageRepository
	Versions() VersionRepository
	Files() FileRepository

	Commit() error
	Rollback() error
}

// UnitOfWork opens relational transactions for the publish pipeline's
// commit phase.
type UnitOfWork interface {
	Begin() (Tx, error)
}
