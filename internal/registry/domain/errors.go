package domain

import "fmt"

// PackageNotFoundError is returned when a package reference (with optional
// version or range) cannot be resolved. It is the single error taxonomy of
// the resolution path and maps to a 404 at the API boundary.
type PackageNotFoundError struct {
	// Reference is the formatted reference, e.g. "@acme/foo@^1.0.0".
	Reference string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %s not found", e.Reference)
}

// JobNotFoundError is returned when a publish job lookup misses.
type JobNotFoundError struct {
	ID int64
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("publish job %d not found", e.ID)
}

// VersionConflictError is returned before any side effect when a publish
// request names a version that already exists or does not advance the
// package's highest published version.
type VersionConflictError struct {
	Reference string
	Version   string
	Existing  string
}

func (e *VersionConflictError) Error() string {
	if e.Existing != "" {
		return fmt.Sprintf("version %s of %s must be newer than existing version %s", e.Version, e.Reference, e.Existing)
	}
	return fmt.Sprintf("version %s of %s already exists", e.Version, e.Reference)
}

// PendingJobError is returned when a publish request targets a package that
// already has a non-terminal publish job.
type PendingJobError struct {
	Reference string
	JobID     int64
}

func (e *PendingJobError) Error() string {
	return fmt.Sprintf("a publish job (%d) is already pending for %s", e.JobID, e.Reference)
}
