package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/uiua-boo/registry/internal/registry/domain"
)

// versionColumns is the list of columns to select for version queries.
const versionColumns = `id, package_id, version, artifact_key, checksum, is_yanked, created_at`

// versionRepository implements domain.VersionRepository using SQLite.
type versionRepository struct {
	q querier
}

func newVersionRepository(q querier) *versionRepository {
	return &versionRepository{q: q}
}

var _ domain.VersionRepository = (*versionRepository)(nil)

func scanVersion(scanner interface{ Scan(...any) error }) (*VersionModel, error) {
	var model VersionModel
	err := scanner.Scan(
		&model.ID, &model.PackageID, &model.Version,
		&model.ArtifactKey, &model.Checksum, &model.IsYanked, &model.CreatedAt,
	)
	return &model, err
}

// Create inserts a version row and sets its ID. The unique constraint on
// (package_id, version) enforces version immutability at the storage level.
func (r *versionRepository) Create(version *domain.PackageVersion) error {
	model := toVersionModel(version)

	result, err := r.q.Exec(
		`INSERT INTO package_versions (package_id, version, artifact_key, checksum, is_yanked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		model.PackageID, model.Version, model.ArtifactKey, model.Checksum, model.IsYanked, model.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert package version: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	version.SetID(id)
	return nil
}

// FindByID retrieves a version by its internal database ID.
func (r *versionRepository) FindByID(id int64) (*domain.PackageVersion, error) {
	row := r.q.QueryRow(
		`SELECT `+versionColumns+` FROM package_versions WHERE id = ?`,
		id,
	)
	model, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find version by id: %w", err)
	}
	return model.toDomain()
}

// FindByPackageAndVersion retrieves a version by its exact version string
// within a package.
func (r *versionRepository) FindByPackageAndVersion(packageID int64, version string) (*domain.PackageVersion, error) {
	row := r.q.QueryRow(
		`SELECT `+versionColumns+` FROM package_versions WHERE package_id = ? AND version = ?`,
		packageID, version,
	)
	model, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find version by package and version: %w", err)
	}
	return model.toDomain()
}

// ListByPackage retrieves all versions of a package, newest row first.
func (r *versionRepository) ListByPackage(packageID int64) ([]*domain.PackageVersion, error) {
	rows, err := r.q.Query(
		`SELECT `+versionColumns+` FROM package_versions WHERE package_id = ? ORDER BY id DESC`,
		packageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []*domain.PackageVersion
	for rows.Next() {
		model, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		version, err := model.toDomain()
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version rows: %w", err)
	}
	return versions, nil
}

// SetYanked updates the yank flag, the only mutation a committed version
// allows.
func (r *versionRepository) SetYanked(id int64, yanked bool) error {
	result, err := r.q.Exec(
		`UPDATE package_versions SET is_yanked = ? WHERE id = ?`,
		yanked, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update yank flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("package version %d does not exist", id)
	}
	return nil
}
