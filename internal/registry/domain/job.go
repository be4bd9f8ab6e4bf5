package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a publish job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting for its archive upload.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusQueued indicates the archive is stored and the job is queued
	// for processing.
	JobStatusQueued JobStatus = "QUEUED"

	// JobStatusInProgress indicates a worker is processing the job.
	JobStatusInProgress JobStatus = "IN_PROGRESS"

	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "FAILED"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusQueued, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is COMPLETED or FAILED.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobResult is the structured success/failure payload recorded on terminal
// jobs. Errors is populated only for failures.
type JobResult struct {
	Type   string   `json:"type"`
	Errors []string `json:"errors,omitempty"`
}

// SuccessResult returns the payload recorded on completed jobs.
func SuccessResult() *JobResult {
	return &JobResult{Type: "success"}
}

// FailureResult returns the payload recorded on failed jobs.
func FailureResult(errs []string) *JobResult {
	return &JobResult{Type: "failure", Errors: errs}
}

// InvalidTransitionError is returned when a job status transition violates
// the one-directional PENDING → QUEUED → IN_PROGRESS → terminal lifecycle.
type InvalidTransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid publish job transition %s -> %s", e.From, e.To)
}

// PublishJob tracks one attempt to ingest an uploaded archive as a new
// package version. Transitions are one-directional; no state is re-entered.
type PublishJob struct {
	id              int64
	packageID       int64
	version         string
	status          JobStatus
	archiveFileName *string
	result          *JobResult

	processingStartedAt *time.Time
	createdAt           time.Time
	updatedAt           time.Time
}

// NewPublishJob creates a PENDING job for the given package and requested
// version text.
func NewPublishJob(packageID int64, version string) *PublishJob {
	now := time.Now()
	return &PublishJob{
		packageID: packageID,
		version:   version,
		status:    JobStatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstitutePublishJob creates a PublishJob from existing data.
func ReconstitutePublishJob(
	id, packageID int64,
	version string,
	status JobStatus,
	archiveFileName *string,
	result *JobResult,
	processingStartedAt *time.Time,
	createdAt, updatedAt time.Time,
) *PublishJob {
	return &PublishJob{
		id:                  id,
		packageID:           packageID,
		version:             version,
		status:              status,
		archiveFileName:     archiveFileName,
		result:              result,
		processingStartedAt: processingStartedAt,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

// ID returns the database identifier, or 0 for unsaved jobs.
func (j *PublishJob) ID() int64 { return j.id }

// SetID assigns the database identifier after the first insert.
func (j *PublishJob) SetID(id int64) { j.id = id }

// PackageID returns the ID of the target package.
func (j *PublishJob) PackageID() int64 { return j.packageID }

// Version returns the requested version text. It stays text until the
// pipeline validates it.
func (j *PublishJob) Version() string { return j.version }

// Status returns the current job status.
func (j *PublishJob) Status() JobStatus { return j.status }

// ArchiveFileName returns the temporary pending blob key, or nil once the
// archive has been consumed or was never uploaded.
func (j *PublishJob) ArchiveFileName() *string { return j.archiveFileName }

// Result returns the terminal result payload, or nil for non-terminal jobs.
func (j *PublishJob) Result() *JobResult { return j.result }

// ProcessingStartedAt returns when a worker picked up the job, or nil.
func (j *PublishJob) ProcessingStartedAt() *time.Time { return j.processingStartedAt }

// CreatedAt returns when this job was created.
func (j *PublishJob) CreatedAt() time.Time { return j.createdAt }

// UpdatedAt returns when this job was last updated.
func (j *PublishJob) UpdatedAt() time.Time { return j.updatedAt }

// MarkQueued transitions PENDING → QUEUED and records the pending blob key
// holding the uploaded archive.
func (j *PublishJob) MarkQueued(archiveFileName string) error {
	if j.status != JobStatusPending {
		return &InvalidTransitionError{From: j.status, To: JobStatusQueued}
	}
	j.status = JobStatusQueued
	j.archiveFileName = &archiveFileName
	j.updatedAt = time.Now()
	return nil
}

// MarkInProgress transitions QUEUED → IN_PROGRESS and stamps the processing
// start time.
func (j *PublishJob) MarkInProgress() error {
	if j.status != JobStatusQueued {
		return &InvalidTransitionError{From: j.status, To: JobStatusInProgress}
	}
	now := time.Now()
	j.status = JobStatusInProgress
	j.processingStartedAt = &now
	j.updatedAt = now
	return nil
}

// MarkCompleted transitions IN_PROGRESS → COMPLETED with a success result.
func (j *PublishJob) MarkCompleted() error {
	if j.status != JobStatusInProgress {
		return &InvalidTransitionError{From: j.status, To: JobStatusCompleted}
	}
	j.status = JobStatusCompleted
	j.result = SuccessResult()
	j.updatedAt = time.Now()
	return nil
}

// MarkFailed transitions IN_PROGRESS → FAILED with the given problem
// messages as the failure result.
func (j *PublishJob) MarkFailed(errs []string) error {
	if j.status != JobStatusInProgress {
		return &InvalidTransitionError{From: j.status, To: JobStatusFailed}
	}
	j.status = JobStatusFailed
	j.result = FailureResult(errs)
	j.updatedAt = time.Now()
	return nil
}

// ClearArchive drops the temporary blob key once the archive has been
// consumed (moved to its artifact key) or deleted.
func (j *PublishJob) ClearArchive() {
	j.archiveFileName = nil
	j.updatedAt = time.Now()
}
