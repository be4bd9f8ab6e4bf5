package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/uiua-boo/registry/internal/registry/domain"
)

// PackageModel represents the database row for the packages table.
// Fields map directly to SQL columns with Unix timestamps for time values.
type PackageModel struct {
	ID                    int64
	Scope                 string
	Name                  string
	Description           string
	IsArchived            bool
	LatestStableVersionID *int64 // nullable
	CreatedAt             int64  // Unix timestamp
	UpdatedAt             int64  // Unix timestamp
}

func toPackageModel(p *domain.Package) *PackageModel {
	return &PackageModel{
		ID:                    p.ID(),
		Scope:                 p.Scope(),
		Name:                  p.Name(),
		Description:           p.Description(),
		IsArchived:            p.IsArchived(),
		LatestStableVersionID: p.LatestStableVersionID(),
		CreatedAt:             p.CreatedAt().Unix(),
		UpdatedAt:             p.UpdatedAt().Unix(),
	}
}

func (m *PackageModel) toDomain() *domain.Package {
	return domain.ReconstitutePackage(
		m.ID,
		m.Scope,
		m.Name,
		m.Description,
		m.IsArchived,
		m.LatestStableVersionID,
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
	)
}

// VersionModel represents the database row for the package_versions table.
// The version column stores the canonical exact semver string.
type VersionModel struct {
	ID          int64
	PackageID   int64
	Version     string
	ArtifactKey *string // nullable
	Checksum    *string // nullable
	IsYanked    bool
	CreatedAt   int64 // Unix timestamp
}

func toVersionModel(v *domain.PackageVersion) *VersionModel {
	return &VersionModel{
		ID:          v.ID(),
		PackageID:   v.PackageID(),
		Version:     v.Version().String(),
		ArtifactKey: v.ArtifactKey(),
		Checksum:    v.Checksum(),
		IsYanked:    v.IsYanked(),
		CreatedAt:   v.CreatedAt().Unix(),
	}
}

func (m *VersionModel) toDomain() (*domain.PackageVersion, error) {
	parsed, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("stored version %q is not valid semver: %w", m.Version, err)
	}
	return domain.ReconstitutePackageVersion(
		m.ID,
		m.PackageID,
		parsed,
		m.ArtifactKey,
		m.Checksum,
		m.IsYanked,
		time.Unix(m.CreatedAt, 0),
	), nil
}

// FileModel represents the database row for the package_version_files table.
type FileModel struct {
	ID               int64
	PackageVersionID int64
	Path             string
	SizeBytes        int64
	FileKey          *string // nullable
	MimeType         string
	IsPreviewable    bool
	CreatedAt        int64 // Unix timestamp
}

func toFileModel(f *domain.PackageVersionFile) *FileModel {
	return &FileModel{
		ID:               f.ID(),
		PackageVersionID: f.PackageVersionID(),
		Path:             f.Path(),
		SizeBytes:        f.SizeBytes(),
		FileKey:          f.FileKey(),
		MimeType:         f.MimeType(),
		IsPreviewable:    f.IsPreviewable(),
		CreatedAt:        f.CreatedAt().Unix(),
	}
}

func (m *FileModel) toDomain() *domain.PackageVersionFile {
	return domain.ReconstitutePackageVersionFile(
		m.ID,
		m.PackageVersionID,
		m.Path,
		m.SizeBytes,
		m.FileKey,
		m.MimeType,
		m.IsPreviewable,
		time.Unix(m.CreatedAt, 0),
	)
}

// JobModel represents the database row for the publish_jobs table. The
// result column stores the JSON-encoded terminal payload.
type JobModel struct {
	ID                  int64
	PackageID           int64
	Version             string
	Status              string
	ArchiveFileName     *string // nullable
	Result              *string // nullable, JSON encoded
	ProcessingStartedAt *int64  // Unix timestamp, nullable
	CreatedAt           int64   // Unix timestamp
	UpdatedAt           int64   // Unix timestamp
}

func toJobModel(j *domain.PublishJob) (*JobModel, error) {
	m := &JobModel{
		ID:              j.ID(),
		PackageID:       j.PackageID(),
		Version:         j.Version(),
		Status:          j.Status().String(),
		ArchiveFileName: j.ArchiveFileName(),
		CreatedAt:       j.CreatedAt().Unix(),
		UpdatedAt:       j.UpdatedAt().Unix(),
	}
	if result := j.Result(); result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job result: %w", err)
		}
		s := string(encoded)
		m.Result = &s
	}
	if started := j.ProcessingStartedAt(); started != nil {
		ts := started.Unix()
		m.ProcessingStartedAt = &ts
	}
	return m, nil
}

func (m *JobModel) toDomain() (*domain.PublishJob, error) {
	var result *domain.JobResult
	if m.Result != nil {
		result = &domain.JobResult{}
		if err := json.Unmarshal([]byte(*m.Result), result); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
	}
	var processingStartedAt *time.Time
	if m.ProcessingStartedAt != nil {
		t := time.Unix(*m.ProcessingStartedAt, 0)
		processingStartedAt = &t
	}
	return domain.ReconstitutePublishJob(
		m.ID,
		m.PackageID,
		m.Version,
		domain.JobStatus(m.Status),
		m.ArchiveFileName,
		result,
		processingStartedAt,
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
	), nil
}
