package publish

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyArchive is returned when an archive extracts to zero files.
var ErrEmptyArchive = errors.New("archive contains no files")

// ErrInvalidVersion is returned when a publish request's version text is
// not a full exact semantic version.
var ErrInvalidVersion = errors.New("version must be an exact semantic version")

// ArchiveMissingError is the fatal, non-retryable failure raised when a
// job's pending archive blob is absent. Nothing has been done yet, so no
// compensation is needed.
type ArchiveMissingError struct {
	JobID int64
	Key   string
}

func (e *ArchiveMissingError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("publish job %d has no archive attached", e.JobID)
	}
	return fmt.Sprintf("archive %s for publish job %d is missing from storage", e.Key, e.JobID)
}

// ValidationError carries the external validator's problem list. It is an
// expected failure and terminates the job before the transactional phase.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("archive validation failed: %s", strings.Join(e.Problems, "; "))
}

// ExtractionError indicates the archive could not be read or contained an
// entry escaping the archive root.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to extract archive: %v", e.Err)
	}
	return fmt.Sprintf("failed to extract archive entry %q: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageError is a transient infrastructure failure from the blob store,
// the relational store, or the validator process itself. The job may be
// retried by re-queuing, since compensation restores a clean starting
// state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// failureMessages maps a pipeline error to the human-readable problem
// list recorded on the FAILED job. Unknown errors collapse to a single
// fallback message, never a raw internal error chain.
func failureMessages(err error) []string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Problems
	}
	var missing *ArchiveMissingError
	if errors.As(err, &missing) {
		return []string{missing.Error()}
	}
	var extraction *ExtractionError
	if errors.As(err, &extraction) {
		return []string{extraction.Error()}
	}
	if errors.Is(err, ErrEmptyArchive) {
		return []string{ErrEmptyArchive.Error()}
	}
	var storage *StorageError
	if errors.As(err, &storage) {
		return []string{storage.Error()}
	}
	return []string{"publishing failed due to an internal error"}
}
