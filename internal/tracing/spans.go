package tracing

// Span attribute keys for registry tracing.
const (
	// Job attributes
	AttrJobID     = "job.id"
	AttrJobStatus = "job.status"

	// Package attributes
	AttrPackageScope   = "package.scope"
	AttrPackageName    = "package.name"
	AttrPackageVersion = "package.version"

	// Archive attributes
	AttrArchiveKey   = "archive.key"
	AttrArchiveFiles = "archive.files"

	// Resolution attributes
	AttrReference = "resolve.reference"

	// Error attributes
	AttrErrorMessage = "error.message"
)

// Span names for the publish pipeline phases and the HTTP layer.
const (
	SpanProcessJob = "publish.process"
	SpanValidate   = "publish.validate"
	SpanCommit     = "publish.commit"
	SpanCompensate = "publish.compensate"
	SpanResolve    = "registry.resolve"
	SpanHTTPPrefix = "http."
)
