package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/uiua-boo/registry/internal/registry/domain"
)

// querier abstracts *sql.DB and *sql.Tx so the same repository code serves
// direct access and the publish pipeline's transactions.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// packageColumns is the list of columns to select for package queries.
const packageColumns = `id, scope, name, description, is_archived, latest_stable_version_id, created_at, updated_at`

// packageRepository implements domain.PackageRepository using SQLite.
type packageRepository struct {
	q querier
}

func newPackageRepository(q querier) *packageRepository {
	return &packageRepository{q: q}
}

var _ domain.PackageRepository = (*packageRepository)(nil)

func scanPackage(scanner interface{ Scan(...any) error }) (*PackageModel, error) {
	var model PackageModel
	err := scanner.Scan(
		&model.ID, &model.Scope, &model.Name, &model.Description,
		&model.IsArchived, &model.LatestStableVersionID,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// Save persists a package. For new packages (ID == 0), inserts a new row
// and sets the package ID. For existing packages, updates the row.
func (r *packageRepository) Save(pkg *domain.Package) error {
	model := toPackageModel(pkg)

	if pkg.ID() == 0 {
		result, err := r.q.Exec(
			`INSERT INTO packages (scope, name, description, is_archived, latest_stable_version_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			model.Scope, model.Name, model.Description, model.IsArchived,
			model.LatestStableVersionID, model.CreatedAt, model.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert package: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		pkg.SetID(id)
		return nil
	}

	_, err := r.q.Exec(
		`UPDATE packages SET description = ?, is_archived = ?, latest_stable_version_id = ?, updated_at = ?
		 WHERE id = ?`,
		model.Description, model.IsArchived, model.LatestStableVersionID, model.UpdatedAt,
		model.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}
	return nil
}

// FindByID retrieves a package by its internal database ID.
func (r *packageRepository) FindByID(id int64) (*domain.Package, error) {
	row := r.q.QueryRow(
		`SELECT `+packageColumns+` FROM packages WHERE id = ?`,
		id,
	)
	model, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find package by id: %w", err)
	}
	return model.toDomain(), nil
}

// FindByScopeAndName retrieves a package by its (scope, name) identity.
func (r *packageRepository) FindByScopeAndName(scope, name string) (*domain.Package, error) {
	row := r.q.QueryRow(
		`SELECT `+packageColumns+` FROM packages WHERE scope = ? AND name = ?`,
		scope, name,
	)
	model, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find package by scope and name: %w", err)
	}
	return model.toDomain(), nil
}
