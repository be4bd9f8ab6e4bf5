package publish

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/uiua-boo/registry/internal/log"
	"github.com/uiua-boo/registry/internal/publish/validator"
	"github.com/uiua-boo/registry/internal/registry/domain"
	"github.com/uiua-boo/registry/internal/storage"
	"github.com/uiua-boo/registry/internal/tracing"
)

// ArchiveValidator is the external archive validator boundary. The
// production implementation shells out to the validator executable.
type ArchiveValidator interface {
	Validate(ctx context.Context, archivePath, fullName, version string) ([]validator.Problem, error)
}

// CacheInvalidator drops cached lookups for a package after its state
// changes. Optional; the resolver implements it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, scope, name string)
}

// RunnerConfig holds the runner's collaborators.
type RunnerConfig struct {
	Jobs       domain.JobRepository
	Packages   domain.PackageRepository
	UnitOfWork domain.UnitOfWork
	Store      storage.Store
	Validator  ArchiveValidator
	Cache      CacheInvalidator // optional
	Tracer     trace.Tracer     // optional
}

// Runner executes the publish pipeline for one job at a time per job id.
// From IN_PROGRESS it deterministically reaches COMPLETED (all side
// effects durable) or FAILED (all side effects rolled back); a job is
// never left IN_PROGRESS even when the pipeline panics.
type Runner struct {
	jobs      domain.JobRepository
	packages  domain.PackageRepository
	uow       domain.UnitOfWork
	store     storage.Store
	validator ArchiveValidator
	cache     CacheInvalidator
	tracer    trace.Tracer
}

func NewRunner(cfg RunnerConfig) *Runner {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &Runner{
		jobs:      cfg.Jobs,
		packages:  cfg.Packages,
		uow:       cfg.UnitOfWork,
		store:     cfg.Store,
		validator: cfg.Validator,
		cache:     cfg.Cache,
		tracer:    tracer,
	}
}

// Process runs the job with the given id to a terminal status. Triggers
// are delivered at least once; a re-delivered trigger for a terminal or
// already-running job is a logged no-op. The returned error reports what
// failed for the worker's log; the authoritative outcome is the job's
// recorded status and result.
func (r *Runner) Process(ctx context.Context, jobID int64) (err error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanProcessJob,
		trace.WithAttributes(attribute.Int64(tracing.AttrJobID, jobID)))
	defer span.End()

	job, err := r.jobs.FindByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to load publish job: %w", err)
	}
	if job.Status().IsTerminal() {
		log.Info(log.CatPublish, "ignoring trigger for terminal job", "jobID", jobID, "status", job.Status())
		return nil
	}
	if job.Status() == domain.JobStatusInProgress {
		log.Warn(log.CatPublish, "ignoring trigger for job already in progress", "jobID", jobID)
		return nil
	}

	if err := job.MarkInProgress(); err != nil {
		// A PENDING job has no archive yet; its trigger should not exist.
		log.Warn(log.CatPublish, "ignoring trigger for job not yet queued", "jobID", jobID, "status", job.Status())
		return nil
	}
	if err := r.jobs.Save(job); err != nil {
		return fmt.Errorf("failed to mark job in progress: %w", err)
	}

	var pendingKey string
	if key := job.ArchiveFileName(); key != nil {
		pendingKey = *key
	}

	// The temporary archive blob is deleted on every exit path. Deleting
	// a key the pipeline already moved away is a no-op.
	defer func() {
		if pendingKey == "" {
			return
		}
		if derr := r.store.Delete(ctx, pendingKey); derr != nil {
			log.ErrorErr(log.CatPublish, "failed to delete pending archive blob", derr, "jobID", jobID, "key", pendingKey)
		}
	}()

	pipelineErr := func() (perr error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error(log.CatPublish, "publish pipeline panic recovered",
					"jobID", jobID, "panic", rec, "stack", string(debug.Stack()))
				perr = fmt.Errorf("panic during publish: %v", rec)
			}
		}()
		return r.pipeline(ctx, job, pendingKey)
	}()

	if pipelineErr == nil {
		if err := job.MarkCompleted(); err != nil {
			return fmt.Errorf("failed to complete job: %w", err)
		}
	} else {
		span.SetStatus(codes.Error, pipelineErr.Error())
		if err := job.MarkFailed(failureMessages(pipelineErr)); err != nil {
			return fmt.Errorf("failed to record job failure: %w", err)
		}
	}
	job.ClearArchive()

	if err := r.jobs.Save(job); err != nil {
		return fmt.Errorf("failed to record terminal job status: %w", err)
	}
	return pipelineErr
}

func (r *Runner) pipeline(ctx context.Context, job *domain.PublishJob, pendingKey string) error {
	if pendingKey == "" {
		return &ArchiveMissingError{JobID: job.ID()}
	}
	exists, err := r.store.Exists(ctx, pendingKey)
	if err != nil {
		return &StorageError{Op: "archive lookup", Err: err}
	}
	if !exists {
		return &ArchiveMissingError{JobID: job.ID(), Key: pendingKey}
	}

	pkg, err := r.packages.FindByID(job.PackageID())
	if err != nil {
		return &StorageError{Op: "package load", Err: err}
	}
	if pkg == nil {
		return fmt.Errorf("package %d for job %d does not exist", job.PackageID(), job.ID())
	}

	version, err := semver.StrictNewVersion(job.Version())
	if err != nil {
		return fmt.Errorf("job version %q is not an exact semantic version: %w", job.Version(), err)
	}

	if err := r.validate(ctx, pkg, version, pendingKey); err != nil {
		return err
	}

	return r.commit(ctx, pkg, version, pendingKey)
}

// validate materializes the pending blob to a temp file and runs the
// external validator against it. A non-empty problem list is a validation
// failure; a validator malfunction is an infrastructure error.
func (r *Runner) validate(ctx context.Context, pkg *domain.Package, version *semver.Version, pendingKey string) error {
	ctx, span := r.tracer.Start(ctx, tracing.SpanValidate, trace.WithAttributes(
		attribute.String(tracing.AttrPackageScope, pkg.Scope()),
		attribute.String(tracing.AttrPackageName, pkg.Name()),
		attribute.String(tracing.AttrPackageVersion, version.String()),
	))
	defer span.End()

	archivePath, cleanup, err := r.materializeArchive(ctx, pendingKey)
	if err != nil {
		return &StorageError{Op: "archive staging", Err: err}
	}
	defer cleanup()

	problems, err := r.validator.Validate(ctx, archivePath, pkg.FullName(), version.String())
	if err != nil {
		return &StorageError{Op: "archive validation", Err: err}
	}
	if len(problems) > 0 {
		messages := make([]string, 0, len(problems))
		for _, p := range problems {
			messages = append(messages, p.Message)
		}
		return &ValidationError{Problems: messages}
	}
	return nil
}

// materializeArchive streams the pending blob to a local temp file so the
// validator can be pointed at a path regardless of the storage backend.
func (r *Runner) materializeArchive(ctx context.Context, pendingKey string) (string, func(), error) {
	rc, err := r.store.GetStream(ctx, pendingKey)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = rc.Close() }()

	tmp, err := os.CreateTemp("", "boo-archive-*.tar.gz")
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}

// commit runs the transactional phase under a compensation stack. On any
// failure the stack runs in reverse of push order before the primary
// error propagates; a compensation failure is logged, never masking the
// pipeline's own error.
func (r *Runner) commit(ctx context.Context, pkg *domain.Package, version *semver.Version, pendingKey string) error {
	ctx, span := r.tracer.Start(ctx, tracing.SpanCommit)
	defer span.End()

	stack := &CompensationStack{}
	if err := r.commitPhase(ctx, pkg, version, pendingKey, stack); err != nil {
		compCtx, compSpan := r.tracer.Start(ctx, tracing.SpanCompensate,
			trace.WithAttributes(attribute.String(tracing.AttrErrorMessage, err.Error())))
		if compErr := stack.Run(compCtx); compErr != nil {
			compSpan.SetStatus(codes.Error, compErr.Error())
			log.ErrorErr(log.CatPublish, "compensation halted", compErr,
				"scope", pkg.Scope(), "name", pkg.Name(), "version", version.String())
		}
		compSpan.End()
		return err
	}

	// Every recorded side effect is now desired durable state.
	stack.Clear()

	if r.cache != nil {
		r.cache.Invalidate(ctx, pkg.Scope(), pkg.Name())
	}
	log.Info(log.CatPublish, "version published",
		"scope", pkg.Scope(), "name", pkg.Name(), "version", version.String())
	return nil
}

func (r *Runner) commitPhase(ctx context.Context, pkg *domain.Package, version *semver.Version, pendingKey string, stack *CompensationStack) error {
	artifactKey := storage.ArtifactKey(pkg.Scope(), pkg.Name(), version.String())
	if err := r.store.Move(ctx, pendingKey, artifactKey); err != nil {
		return &StorageError{Op: "artifact move", Err: err}
	}
	stack.Push("delete artifact blob", func(ctx context.Context) error {
		return r.store.Delete(ctx, artifactKey)
	})

	tx, err := r.uow.Begin()
	if err != nil {
		return &StorageError{Op: "transaction begin", Err: err}
	}
	stack.Push("roll back transaction", func(context.Context) error {
		return tx.Rollback()
	})

	entries, checksum, err := r.extractArtifact(ctx, artifactKey)
	if err != nil {
		return err
	}

	pv := domain.NewPackageVersion(pkg.ID(), version)
	pv.SetArtifact(artifactKey, checksum)
	if err := tx.Versions().Create(pv); err != nil {
		return &StorageError{Op: "version insert", Err: err}
	}

	for _, entry := range entries {
		classification := Classify(entry.Path, entry.Content)

		var fileKey *string
		if classification.IsPreviewable {
			previewKey := storage.PreviewKey(pkg.Scope(), pkg.Name(), version.String(), entry.Path)
			if err := r.store.Put(ctx, previewKey, bytes.NewReader(entry.Content)); err != nil {
				return &StorageError{Op: "preview write", Err: err}
			}
			stack.Push("delete preview blob", func(ctx context.Context) error {
				return r.store.Delete(ctx, previewKey)
			})
			fileKey = &previewKey
		}

		file := domain.NewPackageVersionFile(
			pv.ID(), entry.Path, int64(len(entry.Content)),
			fileKey, classification.MimeType, classification.IsPreviewable)
		if err := tx.Files().Create(file); err != nil {
			return &StorageError{Op: "file insert", Err: err}
		}
	}

	// The pointer update rides in the same transaction, so a failed
	// commit leaves no dangling latest-stable reference.
	if version.Prerelease() == "" {
		pkg.SetLatestStableVersion(pv.ID())
		if err := tx.Packages().Save(pkg); err != nil {
			return &StorageError{Op: "latest-stable update", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "transaction commit", Err: err}
	}
	return nil
}

// extractArtifact streams the committed artifact through the extractor
// while hashing it, returning the collected entries and the artifact's
// BLAKE3 checksum in a single pass.
func (r *Runner) extractArtifact(ctx context.Context, artifactKey string) ([]Entry, string, error) {
	rc, err := r.store.GetStream(ctx, artifactKey)
	if err != nil {
		return nil, "", &StorageError{Op: "artifact read", Err: err}
	}
	defer func() { _ = rc.Close() }()

	hasher := blake3.New()
	tee := io.TeeReader(rc, hasher)

	entries, err := ExtractEntries(tee)
	if err != nil {
		return nil, "", err
	}

	// The tar reader stops at the end-of-archive marker; hash whatever
	// trailing bytes remain so the checksum covers the whole blob.
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return nil, "", &StorageError{Op: "artifact read", Err: err}
	}

	return entries, hex.EncodeToString(hasher.Sum(nil)), nil
}
