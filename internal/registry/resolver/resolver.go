// Package resolver turns human-supplied package references into concrete
// package and version records.
//
// A reference is a scope and name, optionally carrying a version specifier
// that is either an exact semantic version or a semver range. Range
// matching never selects prereleases; those are only reachable by exact
// match.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/uiua-boo/registry/internal/cachemanager"
	"github.com/uiua-boo/registry/internal/log"
	"github.com/uiua-boo/registry/internal/registry/domain"
)

// ResolvedPackage is the output of a resolution. Version is nil when no
// specifier was given, nothing was required, and no stable default exists.
type ResolvedPackage struct {
	Package          *domain.Package
	Version          *domain.PackageVersion
	RequestedVersion string
}

type scopeName struct {
	Scope string
	Name  string
}

// Resolver resolves references against the relational store, caching
// package lookups with a short TTL.
type Resolver struct {
	packages domain.PackageRepository
	versions domain.VersionRepository

	cache        *cachemanager.InMemoryCacheManager[*domain.Package]
	packageCache *cachemanager.ReadThroughCache[*domain.Package, scopeName]
}

// New builds a Resolver. cacheTTL bounds how long a package lookup stays
// cached; skipCache disables caching entirely (used by tests and the
// publish pipeline, which must observe its own writes).
func New(packages domain.PackageRepository, versions domain.VersionRepository, cacheTTL time.Duration, skipCache bool) *Resolver {
	cache := cachemanager.NewInMemoryCacheManager[*domain.Package](
		"package-resolver", cacheTTL, cachemanager.DefaultCleanupInterval)

	r := &Resolver{
		packages: packages,
		versions: versions,
		cache:    cache,
	}
	r.packageCache = cachemanager.NewReadThroughCache[*domain.Package, scopeName](
		cache,
		func(ctx context.Context, in scopeName) (*domain.Package, error) {
			pkg, err := packages.FindByScopeAndName(in.Scope, in.Name)
			if err != nil {
				return nil, err
			}
			if pkg == nil {
				// Misses are returned as errors so they are never cached.
				return nil, &domain.PackageNotFoundError{Reference: fmt.Sprintf("@%s/%s", in.Scope, in.Name)}
			}
			return pkg, nil
		},
		skipCache,
	)
	return r
}

// Invalidate drops the cached lookup for a package. The submission service
// and the publish runner call this on every write to the package.
func (r *Resolver) Invalidate(ctx context.Context, scope, name string) {
	if err := r.cache.Delete(ctx, cacheKey(scope, name)); err != nil {
		log.Warn(log.CatResolve, "failed to invalidate package cache", "scope", scope, "name", name)
	}
}

func cacheKey(scope, name string) string {
	return fmt.Sprintf("pkg:%s/%s", scope, name)
}

// Query is a single resolution request, built fluently and executed by
// Resolve. A zero Query is not usable; start from FromScopeAndName or
// FromReference.
type Query struct {
	r *Resolver

	scope   string
	name    string
	version string

	malformed bool

	requireExact  bool
	defaultStable bool
	requireVers   bool
}

// FromScopeAndName starts a query for scope/name. The name may carry an
// embedded version after an "@" separator (e.g. "linalg@^1.2"), which is
// split off unless WithVersion supplies one explicitly.
func (r *Resolver) FromScopeAndName(scope, name string) *Query {
	return &Query{r: r, scope: scope, name: name}
}

// FromReference starts a query from a single reference string of the form
// "@scope/name" or "@scope/name@version". Malformed references resolve to
// a not-found error.
func (r *Resolver) FromReference(ref string) *Query {
	q := &Query{r: r}
	rest, ok := strings.CutPrefix(ref, "@")
	if !ok {
		q.malformed = true
		q.name = ref
		return q
	}
	scope, nameAndVersion, ok := strings.Cut(rest, "/")
	if !ok || scope == "" || nameAndVersion == "" {
		q.malformed = true
		q.name = rest
		return q
	}
	q.scope = scope
	q.name, q.version, _ = strings.Cut(nameAndVersion, "@")
	if q.name == "" {
		q.malformed = true
	}
	return q
}

// WithVersion sets the version specifier, either an exact version or a
// range. An empty string leaves the query unversioned.
func (q *Query) WithVersion(version string) *Query {
	q.version = version
	return q
}

// ExpectExactVersion requires the specifier to be a full exact semantic
// version; ranges and partial versions resolve to not-found.
func (q *Query) ExpectExactVersion() *Query {
	q.requireExact = true
	return q
}

// DefaultToStableVersion resolves an unversioned query to the package's
// latest stable version when one exists.
func (q *Query) DefaultToStableVersion() *Query {
	q.defaultStable = true
	return q
}

// ExpectVersion makes resolution fail with not-found unless a concrete
// version was selected.
func (q *Query) ExpectVersion() *Query {
	q.requireVers = true
	return q
}

// reference formats the query for diagnostics, e.g. "@acme/foo@^1.0.0".
func (q *Query) reference() string {
	if q.version == "" {
		return fmt.Sprintf("@%s/%s", q.scope, q.name)
	}
	return fmt.Sprintf("@%s/%s@%s", q.scope, q.name, q.version)
}

func (q *Query) notFound() error {
	return &domain.PackageNotFoundError{Reference: q.reference()}
}

// Resolve executes the query. Every unmet precondition surfaces as a
// PackageNotFoundError carrying the formatted reference; storage errors
// pass through unchanged.
func (q *Query) Resolve(ctx context.Context) (*ResolvedPackage, error) {
	if q.malformed {
		return nil, q.notFound()
	}

	// Split an embedded "name@version" unless a version was supplied
	// separately.
	if q.version == "" {
		if name, version, found := strings.Cut(q.name, "@"); found {
			q.name = name
			q.version = version
		}
	}

	pkg, err := q.r.packageCache.Get(ctx, cacheKey(q.scope, q.name), scopeName{Scope: q.scope, Name: q.name}, 0)
	if err != nil {
		var notFound *domain.PackageNotFoundError
		if errors.As(err, &notFound) {
			return nil, q.notFound()
		}
		return nil, fmt.Errorf("failed to look up package: %w", err)
	}

	version, err := q.resolveVersion(pkg)
	if err != nil {
		return nil, err
	}

	if q.requireVers && version == nil {
		return nil, q.notFound()
	}

	return &ResolvedPackage{
		Package:          pkg,
		Version:          version,
		RequestedVersion: q.version,
	}, nil
}

// ResolveOrFail is Resolve with ExpectVersion applied, for callers that
// cannot proceed without a concrete version.
func (q *Query) ResolveOrFail(ctx context.Context) (*ResolvedPackage, error) {
	return q.ExpectVersion().Resolve(ctx)
}

func (q *Query) resolveVersion(pkg *domain.Package) (*domain.PackageVersion, error) {
	if q.version == "" {
		if !q.defaultStable || pkg.LatestStableVersionID() == nil {
			return nil, nil
		}
		version, err := q.r.versions.FindByID(*pkg.LatestStableVersionID())
		if err != nil {
			return nil, fmt.Errorf("failed to load latest stable version: %w", err)
		}
		return version, nil
	}

	// An exact specifier always resolves by exact lookup, never by range
	// logic, so prereleases stay reachable.
	if exact, err := semver.StrictNewVersion(q.version); err == nil {
		version, err := q.r.versions.FindByPackageAndVersion(pkg.ID(), exact.String())
		if err != nil {
			return nil, fmt.Errorf("failed to look up version: %w", err)
		}
		// A plain miss is a nil version; only ExpectExactVersion or
		// ExpectVersion turn it into an error.
		if version == nil && q.requireExact {
			return nil, q.notFound()
		}
		return version, nil
	}
	if q.requireExact {
		return nil, q.notFound()
	}

	constraint, err := semver.NewConstraint(q.version)
	if err != nil {
		// A specifier that is neither exact nor a valid range matches
		// nothing.
		return nil, nil
	}

	all, err := q.r.versions.ListByPackage(pkg.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	var candidates []*domain.PackageVersion
	for _, v := range all {
		if !v.IsStable() || v.IsYanked() {
			continue
		}
		if constraint.Check(v.Version()) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Version().GreaterThan(candidates[j].Version())
	})
	return candidates[0], nil
}
