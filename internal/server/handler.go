// Package server exposes the registry over an HTTP JSON API: publish job
// submission and polling, reference resolution, and version file listings.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/uiua-boo/registry/internal/log"
	"github.com/uiua-boo/registry/internal/publish"
	"github.com/uiua-boo/registry/internal/registry/domain"
	"github.com/uiua-boo/registry/internal/registry/resolver"
	"github.com/uiua-boo/registry/internal/registry/tree"
	"github.com/uiua-boo/registry/internal/storage"
)

// MaxArchiveSize bounds an uploaded archive body.
const MaxArchiveSize = 64 << 20

// Handler provides the HTTP endpoints for registry operations.
type Handler struct {
	publisher *publish.Service
	resolver  *resolver.Resolver
	files     domain.FileRepository
	store     storage.Store
	events    *publish.Pool
}

// HandlerConfig configures the API handler.
type HandlerConfig struct {
	// Publisher admits publish requests and stores archives (required).
	Publisher *publish.Service
	// Resolver resolves package references (required).
	Resolver *resolver.Resolver
	// Files lists the file rows of resolved versions (required).
	Files domain.FileRepository
	// Store serves preview blob content (required).
	Store storage.Store
	// Events, when set, enables the job event stream endpoint.
	Events *publish.Pool
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		publisher: cfg.Publisher,
		resolver:  cfg.Resolver,
		files:     cfg.Files,
		store:     cfg.Store,
		events:    cfg.Events,
	}
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Publish jobs
	mux.HandleFunc("POST /api/publish", h.CreateJob)
	mux.HandleFunc("POST /api/publish/{id}/archive", h.AttachArchive)
	mux.HandleFunc("GET /api/publish/{id}", h.JobStatus)
	mux.HandleFunc("GET /api/publish/{id}/events", h.StreamJobEvents)

	// Resolution
	mux.HandleFunc("GET /api/packages/{scope}/{name}", h.ResolvePackage)
	mux.HandleFunc("GET /api/packages/{scope}/{name}/{version}/files", h.VersionFiles)

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	return traceRoutes(mux)
}

// === Request/Response Types ===

// CreateJobRequest is the request body for creating a publish job.
type CreateJobRequest struct {
	// Scope is the package scope without the "@" sigil (required).
	Scope string `json:"scope"`
	// Name is the package name within the scope (required).
	Name string `json:"name"`
	// Version is the exact semantic version to publish (required).
	Version string `json:"version"`
}

// JobResultResponse is the terminal outcome payload of a job.
type JobResultResponse struct {
	Type   string   `json:"type"`
	Errors []string `json:"errors,omitempty"`
}

// JobResponse is the response body for a publish job.
type JobResponse struct {
	ID                  int64              `json:"id"`
	PackageID           int64              `json:"package_id"`
	Version             string             `json:"version"`
	Status              string             `json:"status"`
	Result              *JobResultResponse `json:"result,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	ProcessingStartedAt *time.Time         `json:"processing_started_at,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// VersionResponse is the response body for a resolved version.
type VersionResponse struct {
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum,omitempty"`
	Yanked    bool      `json:"yanked"`
	CreatedAt time.Time `json:"created_at"`
}

// PackageResponse is the response body for a resolved package reference.
type PackageResponse struct {
	Scope       string           `json:"scope"`
	Name        string           `json:"name"`
	Reference   string           `json:"reference"`
	Description string           `json:"description,omitempty"`
	Version     *VersionResponse `json:"version,omitempty"`
}

// FileNodeResponse is one node of a version's file tree. Directories carry
// Children; files carry size and mime metadata. Content is populated only
// for a directly requested previewable file.
type FileNodeResponse struct {
	Name        string             `json:"name"`
	Path        string             `json:"path"`
	IsDir       bool               `json:"is_dir"`
	Children    []FileNodeResponse `json:"children,omitempty"`
	SizeBytes   int64              `json:"size_bytes,omitempty"`
	MimeType    string             `json:"mime_type,omitempty"`
	Previewable bool               `json:"previewable,omitempty"`
	Content     string             `json:"content,omitempty"`
}

// ErrorResponse is the response body for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// === Handlers ===

// CreateJob admits a publish request and creates a PENDING job.
// POST /api/publish
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}
	if req.Scope == "" || req.Name == "" || req.Version == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "scope, name, and version are required", "")
		return
	}

	job, err := h.publisher.CreateJob(r.Context(), req.Scope, req.Name, req.Version)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, jobToResponse(job))
}

// AttachArchive accepts the gzip tarball body for a PENDING job and queues
// it for processing.
// POST /api/publish/{id}/archive
func (h *Handler) AttachArchive(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid job id", err.Error())
		return
	}

	job, err := h.publisher.AttachArchive(r.Context(), id, http.MaxBytesReader(w, r.Body, MaxArchiveSize))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, jobToResponse(job))
}

// JobStatus returns the current job state and, for terminal jobs, the
// result payload.
// GET /api/publish/{id}
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid job id", err.Error())
		return
	}

	job, err := h.publisher.JobStatus(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, jobToResponse(job))
}

// StreamJobEvents streams job lifecycle events as SSE until the job
// reaches a terminal state or the client disconnects.
// GET /api/publish/{id}/events
func (h *Handler) StreamJobEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.writeError(w, http.StatusNotFound, "not_available", "Event streaming is not enabled", "")
		return
	}
	id, err := jobID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid job id", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported", "")
		return
	}

	// Subscribe before the status check so a job finishing in between
	// still delivers its terminal event through the broker.
	events := h.events.Broker().Subscribe(r.Context())

	job, err := h.publisher.JobStatus(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A job that already finished emits its terminal event immediately
	// instead of waiting for broker traffic that will never come.
	if job.Status().IsTerminal() {
		final := publish.JobEvent{JobID: id, Type: publish.JobCompleted}
		if job.Status() == domain.JobStatusFailed {
			final.Type = publish.JobFailed
			if result := job.Result(); result != nil && len(result.Errors) > 0 {
				final.Error = result.Errors[0]
			}
		}
		if data, err := json.Marshal(final); err == nil {
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Payload.JobID != id {
				continue
			}
			data, err := json.Marshal(event.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if event.Payload.Type == publish.JobCompleted || event.Payload.Type == publish.JobFailed {
				return
			}
		}
	}
}

// ResolvePackage resolves a reference, defaulting to the latest stable
// version when no specifier is given.
// GET /api/packages/{scope}/{name}?version=<specifier>
func (h *Handler) ResolvePackage(w http.ResponseWriter, r *http.Request) {
	specifier := r.URL.Query().Get("version")
	query := h.resolver.FromScopeAndName(r.PathValue("scope"), r.PathValue("name")).
		WithVersion(specifier).
		DefaultToStableVersion()
	if specifier != "" {
		// A specifier that matches nothing is a miss, but an unversioned
		// query still resolves packages with no stable version yet.
		query = query.ExpectVersion()
	}
	resolved, err := query.Resolve(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := PackageResponse{
		Scope:       resolved.Package.Scope(),
		Name:        resolved.Package.Name(),
		Reference:   resolved.Package.Reference(),
		Description: resolved.Package.Description(),
	}
	if resolved.Version != nil {
		resp.Version = versionToResponse(resolved.Version)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// VersionFiles returns the file tree of an exact version, or a single
// node (with inline content for previewable files) when ?path= is given.
// GET /api/packages/{scope}/{name}/{version}/files?path=<path>
func (h *Handler) VersionFiles(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.resolver.FromScopeAndName(r.PathValue("scope"), r.PathValue("name")).
		WithVersion(r.PathValue("version")).
		ExpectExactVersion().
		ExpectVersion().
		Resolve(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	files, err := h.files.ListByVersion(resolved.Version.ID())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	fileTree := tree.Build(files)

	node := fileTree.Lookup(r.URL.Query().Get("path"))
	if node == nil {
		h.writeError(w, http.StatusNotFound, "not_found",
			fmt.Sprintf("No such file in %s@%s", resolved.Package.Reference(), resolved.Version.Version()), "")
		return
	}

	resp := nodeToResponse(node)
	if r.URL.Query().Get("path") != "" && node.IsPreviewable() {
		content, err := h.store.GetBytes(r.Context(), *node.File().FileKey())
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		resp.Content = string(content)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Health returns a liveness indication.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === Helpers ===

func jobID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func jobToResponse(job *domain.PublishJob) JobResponse {
	resp := JobResponse{
		ID:                  job.ID(),
		PackageID:           job.PackageID(),
		Version:             job.Version(),
		Status:              job.Status().String(),
		CreatedAt:           job.CreatedAt(),
		ProcessingStartedAt: job.ProcessingStartedAt(),
		UpdatedAt:           job.UpdatedAt(),
	}
	if result := job.Result(); result != nil {
		resp.Result = &JobResultResponse{Type: result.Type, Errors: result.Errors}
	}
	return resp
}

func versionToResponse(version *domain.PackageVersion) *VersionResponse {
	resp := &VersionResponse{
		Version:   version.Version().String(),
		Yanked:    version.IsYanked(),
		CreatedAt: version.CreatedAt(),
	}
	if checksum := version.Checksum(); checksum != nil {
		resp.Checksum = *checksum
	}
	return resp
}

func nodeToResponse(node *tree.Node) FileNodeResponse {
	resp := FileNodeResponse{
		Name:  node.DisplayName(),
		Path:  node.Path(),
		IsDir: node.IsDir(),
	}
	if node.IsDir() {
		for _, child := range node.Children() {
			resp.Children = append(resp.Children, nodeToResponse(child))
		}
		return resp
	}
	if file := node.File(); file != nil {
		resp.SizeBytes = file.SizeBytes()
		resp.MimeType = file.MimeType()
		resp.Previewable = file.IsPreviewable()
	}
	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.ErrorErr(log.CatHTTP, "failed to encode JSON response", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// writeDomainError maps domain error types to HTTP statuses: lookups that
// miss are 404, admission conflicts are 409, bad input is 400, and
// everything else is a 500 with the detail kept out of the body.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		pkgNotFound *domain.PackageNotFoundError
		jobNotFound *domain.JobNotFoundError
		conflict    *domain.VersionConflictError
		pendingJob  *domain.PendingJobError
		transition  *domain.InvalidTransitionError
		maxBytes    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &pkgNotFound):
		h.writeError(w, http.StatusNotFound, "package_not_found", err.Error(), "")
	case errors.As(err, &jobNotFound):
		h.writeError(w, http.StatusNotFound, "job_not_found", err.Error(), "")
	case errors.As(err, &conflict):
		h.writeError(w, http.StatusConflict, "version_conflict", err.Error(), "")
	case errors.As(err, &pendingJob):
		h.writeError(w, http.StatusConflict, "pending_job", err.Error(), "")
	case errors.As(err, &transition):
		h.writeError(w, http.StatusConflict, "invalid_job_state", err.Error(), "")
	case errors.Is(err, publish.ErrInvalidVersion):
		h.writeError(w, http.StatusBadRequest, "invalid_version", err.Error(), "")
	case errors.As(err, &maxBytes):
		h.writeError(w, http.StatusRequestEntityTooLarge, "archive_too_large",
			fmt.Sprintf("Archive exceeds the %d byte limit", int64(MaxArchiveSize)), "")
	default:
		log.ErrorErr(log.CatHTTP, "request failed", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
