package sqlite

import (
	"fmt"

	"github.com/uiua-boo/registry/internal/registry/domain"
)

// fileColumns is the list of columns to select for file queries.
const fileColumns = `id, package_version_id, path, size_bytes, file_key, mime_type, is_previewable, created_at`

// fileRepository implements domain.FileRepository using SQLite.
type fileRepository struct {
	q querier
}

func newFileRepository(q querier) *fileRepository {
	return &fileRepository{q: q}
}

var _ domain.FileRepository = (*fileRepository)(nil)

func scanFile(scanner interface{ Scan(...any) error }) (*FileModel, error) {
	var model FileModel
	err := scanner.Scan(
		&model.ID, &model.PackageVersionID, &model.Path, &model.SizeBytes,
		&model.FileKey, &model.MimeType, &model.IsPreviewable, &model.CreatedAt,
	)
	return &model, err
}

// Create inserts a file row and sets its ID.
func (r *fileRepository) Create(file *domain.PackageVersionFile) error {
	model := toFileModel(file)

	result, err := r.q.Exec(
		`INSERT INTO package_version_files (package_version_id, path, size_bytes, file_key, mime_type, is_previewable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		model.PackageVersionID, model.Path, model.SizeBytes,
		model.FileKey, model.MimeType, model.IsPreviewable, model.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	file.SetID(id)
	return nil
}

// ListByVersion retrieves all files of a version ordered by path.
func (r *fileRepository) ListByVersion(packageVersionID int64) ([]*domain.PackageVersionFile, error) {
	rows, err := r.q.Query(
		`SELECT `+fileColumns+` FROM package_version_files WHERE package_version_id = ? ORDER BY path`,
		packageVersionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*domain.PackageVersionFile
	for rows.Next() {
		model, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file rows: %w", err)
	}
	return files, nil
}
