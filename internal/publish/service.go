package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"

	"github.com/uiua-boo/registry/internal/log"
	"github.com/uiua-boo/registry/internal/registry/domain"
	"github.com/uiua-boo/registry/internal/storage"
)

// JobEnqueuer hands accepted jobs to the background worker pool.
type JobEnqueuer interface {
	Enqueue(jobID int64) error
}

// Service is the publish front door: it admits or rejects publish requests
// before any side effect, stores uploaded archives, and hands queued jobs
// to the worker pool.
type Service struct {
	jobs     domain.JobRepository
	packages domain.PackageRepository
	versions domain.VersionRepository
	store    storage.Store
	pool     JobEnqueuer
}

func NewService(
	jobs domain.JobRepository,
	packages domain.PackageRepository,
	versions domain.VersionRepository,
	store storage.Store,
	pool JobEnqueuer,
) *Service {
	return &Service{
		jobs:     jobs,
		packages: packages,
		versions: versions,
		store:    store,
		pool:     pool,
	}
}

// CreateJob admits a publish request for the given package and version and
// records a PENDING job awaiting its archive upload. All admission checks
// run here, before any blob or job row exists: the package must exist, the
// version must be an exact semantic version strictly newer than every
// published version, and the package must have no other active job.
func (s *Service) CreateJob(ctx context.Context, scope, name, version string) (*domain.PublishJob, error) {
	pkg, err := s.packages.FindByScopeAndName(scope, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up package: %w", err)
	}
	if pkg == nil {
		return nil, &domain.PackageNotFoundError{Reference: fmt.Sprintf("@%s/%s", scope, name)}
	}

	parsed, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}

	existing, err := s.versions.ListByPackage(pkg.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to list package versions: %w", err)
	}
	var max *semver.Version
	for _, v := range existing {
		if v.Version().Equal(parsed) {
			return nil, &domain.VersionConflictError{
				Reference: pkg.Reference(),
				Version:   parsed.String(),
			}
		}
		if max == nil || v.Version().GreaterThan(max) {
			max = v.Version()
		}
	}
	if max != nil && !parsed.GreaterThan(max) {
		return nil, &domain.VersionConflictError{
			Reference: pkg.Reference(),
			Version:   parsed.String(),
			Existing:  max.String(),
		}
	}

	active, err := s.jobs.FindActiveByPackage(pkg.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to look up active jobs: %w", err)
	}
	if active != nil {
		return nil, &domain.PendingJobError{Reference: pkg.Reference(), JobID: active.ID()}
	}

	job := domain.NewPublishJob(pkg.ID(), parsed.String())
	if err := s.jobs.Save(job); err != nil {
		return nil, fmt.Errorf("failed to create publish job: %w", err)
	}

	log.Info(log.CatPublish, "publish job created",
		"jobID", job.ID(), "reference", pkg.Reference(), "version", parsed.String())
	return job, nil
}

// AttachArchive stores the uploaded archive under a fresh pending key,
// transitions the job to QUEUED, and enqueues it for processing. The blob
// write happens before the transition so a QUEUED job always has its
// archive in place.
func (s *Service) AttachArchive(ctx context.Context, jobID int64, archive io.Reader) (*domain.PublishJob, error) {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load publish job: %w", err)
	}

	pendingKey := storage.PendingKey()
	if err := s.store.Put(ctx, pendingKey, archive); err != nil {
		return nil, &StorageError{Op: "archive upload", Err: err}
	}

	if err := job.MarkQueued(pendingKey); err != nil {
		// The job was not waiting for an archive; drop the orphaned blob.
		if derr := s.store.Delete(ctx, pendingKey); derr != nil {
			log.ErrorErr(log.CatPublish, "failed to delete orphaned archive blob", derr, "key", pendingKey)
		}
		return nil, err
	}
	if err := s.jobs.Save(job); err != nil {
		return nil, fmt.Errorf("failed to queue publish job: %w", err)
	}

	if err := s.pool.Enqueue(job.ID()); err != nil {
		// The job stays QUEUED; a later trigger or restart sweep picks it up.
		log.ErrorErr(log.CatPublish, "failed to enqueue publish job", err, "jobID", job.ID())
	} else {
		log.Info(log.CatPublish, "archive attached", "jobID", job.ID(), "key", pendingKey)
	}
	return job, nil
}

// JobStatus returns the job with the given id for status polling.
func (s *Service) JobStatus(ctx context.Context, jobID int64) (*domain.PublishJob, error) {
	return s.jobs.FindByID(jobID)
}
