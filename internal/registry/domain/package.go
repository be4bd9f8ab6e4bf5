// Package domain provides the pure domain layer for the package registry with
// no infrastructure dependencies.
//
// It defines the Package, PackageVersion, PackageVersionFile and PublishJob
// entities with encapsulated state, the repository interfaces used by the
// read and publish paths, and the domain-specific error types. Persistence,
// blob storage and process execution live in other packages.
package domain

import (
	"fmt"
	"time"
)

// Package is a named unit of distribution within a scope. Its (scope, name)
// identity is immutable once created; only the description, archive flag and
// latest-stable pointer change over its lifetime.
type Package struct {
	id                    int64
	scope                 string
	name                  string
	description           string
	isArchived            bool
	latestStableVersionID *int64

	createdAt time.Time
	updatedAt time.Time
}

// NewPackage creates a Package for the given scope and name. The ID is left
// as zero; it is assigned by the persistence layer on first save.
func NewPackage(scope, name string) *Package {
	now := time.Now()
	return &Package{
		scope:     scope,
		name:      name,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstitutePackage creates a Package from existing data, typically when
// hydrating from the database.
func ReconstitutePackage(
	id int64,
	scope, name, description string,
	isArchived bool,
	latestStableVersionID *int64,
	createdAt, updatedAt time.Time,
) *Package {
	return &Package{
		id:                    id,
		scope:                 scope,
		name:                  name,
		description:           description,
		isArchived:            isArchived,
		latestStableVersionID: latestStableVersionID,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
}

// ID returns the database identifier, or 0 for unsaved packages.
func (p *Package) ID() int64 { return p.id }

// SetID assigns the database identifier after the first insert.
func (p *Package) SetID(id int64) { p.id = id }

// Scope returns the namespace this package belongs to.
func (p *Package) Scope() string { return p.scope }

// Name returns the package name within its scope.
func (p *Package) Name() string { return p.name }

// Description returns the human-readable package description.
func (p *Package) Description() string { return p.description }

// IsArchived reports whether the package has been archived by an admin.
func (p *Package) IsArchived() bool { return p.isArchived }

// LatestStableVersionID returns the ID of the highest published version with
// no prerelease component, or nil if no stable version exists.
func (p *Package) LatestStableVersionID() *int64 { return p.latestStableVersionID }

// CreatedAt returns when this package was created.
func (p *Package) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns when this package was last updated.
func (p *Package) UpdatedAt() time.Time { return p.updatedAt }

// Reference returns the canonical user-facing reference, e.g. "@acme/foo".
func (p *Package) Reference() string {
	return fmt.Sprintf("@%s/%s", p.scope, p.name)
}

// FullName returns the scope-qualified name without the scope sigil,
// e.g. "acme/foo". Blob keys are built from this form.
func (p *Package) FullName() string {
	return fmt.Sprintf("%s/%s", p.scope, p.name)
}

// SetDescription updates the package description.
func (p *Package) SetDescription(description string) {
	p.description = description
	p.updatedAt = time.Now()
}

// SetLatestStableVersion points the package at its new latest stable version.
func (p *Package) SetLatestStableVersion(versionID int64) {
	p.latestStableVersionID = &versionID
	p.updatedAt = time.Now()
}
