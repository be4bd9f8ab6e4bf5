package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/uiua-boo/registry/internal/registry/domain"
)

// jobColumns is the list of columns to select for publish job queries.
const jobColumns = `id, package_id, version, status, archive_file_name, result, processing_started_at, created_at, updated_at`

// jobRepository implements domain.JobRepository using SQLite.
type jobRepository struct {
	q querier
}

func newJobRepository(q querier) *jobRepository {
	return &jobRepository{q: q}
}

var _ domain.JobRepository = (*jobRepository)(nil)

func scanJob(scanner interface{ Scan(...any) error }) (*JobModel, error) {
	var model JobModel
	err := scanner.Scan(
		&model.ID, &model.PackageID, &model.Version, &model.Status,
		&model.ArchiveFileName, &model.Result, &model.ProcessingStartedAt,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// Save persists a job. For new jobs (ID == 0), inserts a new row and sets
// the job ID. For existing jobs, updates the row.
func (r *jobRepository) Save(job *domain.PublishJob) error {
	model, err := toJobModel(job)
	if err != nil {
		return err
	}

	if job.ID() == 0 {
		result, err := r.q.Exec(
			`INSERT INTO publish_jobs (package_id, version, status, archive_file_name, result, processing_started_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			model.PackageID, model.Version, model.Status, model.ArchiveFileName,
			model.Result, model.ProcessingStartedAt, model.CreatedAt, model.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert publish job: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		job.SetID(id)
		return nil
	}

	_, err = r.q.Exec(
		`UPDATE publish_jobs SET status = ?, archive_file_name = ?, result = ?, processing_started_at = ?, updated_at = ?
		 WHERE id = ?`,
		model.Status, model.ArchiveFileName, model.Result, model.ProcessingStartedAt, model.UpdatedAt,
		model.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update publish job: %w", err)
	}
	return nil
}

// FindByID retrieves a job by its internal database ID.
// Returns JobNotFoundError if no matching job exists.
func (r *jobRepository) FindByID(id int64) (*domain.PublishJob, error) {
	row := r.q.QueryRow(
		`SELECT `+jobColumns+` FROM publish_jobs WHERE id = ?`,
		id,
	)
	model, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.JobNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find publish job by id: %w", err)
	}
	return model.toDomain()
}

// FindActiveByPackage retrieves the non-terminal job for a package, if
// any. At most one non-terminal job per package exists at a time.
func (r *jobRepository) FindActiveByPackage(packageID int64) (*domain.PublishJob, error) {
	row := r.q.QueryRow(
		`SELECT `+jobColumns+` FROM publish_jobs
		 WHERE package_id = ? AND status NOT IN ('COMPLETED', 'FAILED')
		 ORDER BY id DESC LIMIT 1`,
		packageID,
	)
	model, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active publish job: %w", err)
	}
	return model.toDomain()
}
