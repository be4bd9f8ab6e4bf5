package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiua-boo/registry/internal/publish"
	"github.com/uiua-boo/registry/internal/registry/resolver"
	"github.com/uiua-boo/registry/internal/storage"
	"github.com/uiua-boo/registry/internal/testutil"
)

// recordingEnqueuer captures enqueued job IDs without running a worker.
type recordingEnqueuer struct {
	jobIDs []int64
	err    error
}

func (e *recordingEnqueuer) Enqueue(jobID int64) error {
	if e.err != nil {
		return e.err
	}
	e.jobIDs = append(e.jobIDs, jobID)
	return nil
}

type handlerFixture struct {
	handler  *Handler
	fixture  *testutil.Fixture
	store    *storage.MemStore
	enqueuer *recordingEnqueuer
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	fixture := testutil.NewBuilder(t, db).WithStandardRegistryData().Build()

	store := storage.NewMemStore()
	enqueuer := &recordingEnqueuer{}
	service := publish.NewService(
		db.JobRepository(), db.PackageRepository(), db.VersionRepository(), store, enqueuer)
	res := resolver.New(db.PackageRepository(), db.VersionRepository(), 0, true)

	handler := NewHandler(HandlerConfig{
		Publisher: service,
		Resolver:  res,
		Files:     db.FileRepository(),
		Store:     store,
	})
	return &handlerFixture{handler: handler, fixture: fixture, store: store, enqueuer: enqueuer}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	f.handler.Routes().ServeHTTP(w, req)
	return w
}

// === Publish job tests ===

func TestHandler_CreateJob(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "math", "name": "linalg", "version": "3.0.0"}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.ID)
	assert.Equal(t, f.fixture.Package(t, "math/linalg").ID(), resp.PackageID)
	assert.Equal(t, "3.0.0", resp.Version)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Nil(t, resp.Result)
}

func TestHandler_CreateJob_InvalidJSON(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/publish", "not json")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_json", resp.Code)
}

func TestHandler_CreateJob_MissingFields(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/publish", `{"scope": "math", "name": "linalg"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Code)
}

func TestHandler_CreateJob_UnknownPackage(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "math", "name": "missing", "version": "1.0.0"}`)

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "package_not_found", resp.Code)
	assert.Contains(t, resp.Error, "@math/missing")
}

func TestHandler_CreateJob_InvalidVersion(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "math", "name": "linalg", "version": "^1.0.0"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_version", resp.Code)
}

func TestHandler_CreateJob_VersionConflict(t *testing.T) {
	f := newHandlerFixture(t)

	// 1.1.0 already exists on math/linalg.
	w := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "math", "name": "linalg", "version": "1.1.0"}`)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "version_conflict", resp.Code)
}

func TestHandler_CreateJob_PendingJobConflict(t *testing.T) {
	f := newHandlerFixture(t)

	first := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "tools", "name": "fmt", "version": "0.4.0"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "tools", "name": "fmt", "version": "0.5.0"}`)

	require.Equal(t, http.StatusConflict, second.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "pending_job", resp.Code)
}

func TestHandler_AttachArchive(t *testing.T) {
	f := newHandlerFixture(t)

	created := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "math", "name": "linalg", "version": "3.0.0"}`)
	require.Equal(t, http.StatusCreated, created.Code)
	var job JobResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &job))

	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/publish/%d/archive", job.ID), "fake-archive-bytes")

	require.Equal(t, http.StatusOK, w.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QUEUED", resp.Status)
	assert.Equal(t, []int64{job.ID}, f.enqueuer.jobIDs)

	// The archive landed in the pending area of the blob store.
	keys := f.store.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "pending/"))
}

func TestHandler_AttachArchive_Twice(t *testing.T) {
	f := newHandlerFixture(t)

	created := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "math", "name": "linalg", "version": "3.0.0"}`)
	var job JobResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &job))

	first := f.do(t, http.MethodPost, fmt.Sprintf("/api/publish/%d/archive", job.ID), "archive")
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(t, http.MethodPost, fmt.Sprintf("/api/publish/%d/archive", job.ID), "archive")

	require.Equal(t, http.StatusConflict, second.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_job_state", resp.Code)
}

func TestHandler_AttachArchive_UnknownJob(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/publish/9999/archive", "archive")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job_not_found", resp.Code)
}

func TestHandler_AttachArchive_InvalidID(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/publish/abc/archive", "archive")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_JobStatus(t *testing.T) {
	f := newHandlerFixture(t)

	created := f.do(t, http.MethodPost, "/api/publish",
		`{"scope": "math", "name": "linalg", "version": "3.0.0"}`)
	var job JobResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &job))

	w := f.do(t, http.MethodGet, fmt.Sprintf("/api/publish/%d", job.ID), "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestHandler_JobStatus_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/publish/424242", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job_not_found", resp.Code)
}

// === Resolution tests ===

func TestHandler_ResolvePackage_DefaultsToStable(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp PackageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "math", resp.Scope)
	assert.Equal(t, "linalg", resp.Name)
	assert.Equal(t, "@math/linalg", resp.Reference)
	assert.Equal(t, "linear algebra primitives", resp.Description)
	// 1.2.0 is yanked and 2.0.0-rc.1 is a prerelease, so 1.1.0 wins.
	require.NotNil(t, resp.Version)
	assert.Equal(t, "1.1.0", resp.Version.Version)
	assert.False(t, resp.Version.Yanked)
}

func TestHandler_ResolvePackage_WithRange(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg?version=%5E1.0.0", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp PackageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Version)
	assert.Equal(t, "1.1.0", resp.Version.Version)
}

func TestHandler_ResolvePackage_ExactVersion(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg?version=1.0.0", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp PackageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Version)
	assert.Equal(t, "1.0.0", resp.Version.Version)
	assert.Equal(t, "cafebabe", resp.Version.Checksum)
}

func TestHandler_ResolvePackage_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/missing", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "package_not_found", resp.Code)
}

func TestHandler_ResolvePackage_NoMatchingVersion(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg?version=%5E9.0.0", "")

	require.Equal(t, http.StatusNotFound, w.Code)
}

// === File tree tests ===

func TestHandler_VersionFiles_Tree(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg/1.1.0/files", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp FileNodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsDir)

	names := make([]string, 0, len(resp.Children))
	for _, child := range resp.Children {
		names = append(names, child.Name)
	}
	// Directories sort before files.
	assert.Equal(t, []string{"bench", "docs", "lib.ua"}, names)
}

func TestHandler_VersionFiles_SingleFile(t *testing.T) {
	f := newHandlerFixture(t)

	key := storage.PreviewKey("math", "linalg", "1.1.0", "docs/usage.md")
	require.NoError(t, f.store.Put(context.Background(), key, strings.NewReader("# Usage\n")))

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg/1.1.0/files?path=docs/usage.md", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp FileNodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsDir)
	assert.Equal(t, "docs/usage.md", resp.Path)
	assert.Equal(t, "text/markdown", resp.MimeType)
	assert.True(t, resp.Previewable)
	assert.Equal(t, "# Usage\n", resp.Content)
}

func TestHandler_VersionFiles_BinaryFileHasNoContent(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg/1.1.0/files?path=bench/data.bin", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp FileNodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Previewable)
	assert.Empty(t, resp.Content)
	assert.Equal(t, int64(4096), resp.SizeBytes)
}

func TestHandler_VersionFiles_Subdirectory(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg/1.1.0/files?path=docs", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp FileNodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsDir)
	require.Len(t, resp.Children, 1)
	assert.Equal(t, "docs/usage.md", resp.Children[0].Path)
}

func TestHandler_VersionFiles_UnknownPath(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg/1.1.0/files?path=nope.txt", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Code)
	assert.Contains(t, resp.Error, "@math/linalg@1.1.0")
}

func TestHandler_VersionFiles_UnknownVersion(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/packages/math/linalg/7.7.7/files", "")

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_VersionFiles_RangeSpecifierRejected(t *testing.T) {
	f := newHandlerFixture(t)

	// The files endpoint wants an exact version, not a range.
	w := f.do(t, http.MethodGet, "/api/packages/math/linalg/%5E1.0.0/files", "")

	require.Equal(t, http.StatusNotFound, w.Code)
}

// === Misc ===

func TestHandler_Health(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestHandler_StreamJobEvents_DisabledWithoutPool(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/publish/1/events", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_available", resp.Code)
}

type idleProcessor struct{}

func (idleProcessor) Process(ctx context.Context, jobID int64) error { return nil }

// A stream opened after the job already finished emits the terminal event
// right away instead of waiting on broker traffic that will never come.
func TestHandler_StreamJobEvents_TerminalJobEmitsImmediately(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.NewBuilder(t, db).WithPackage("math", "linalg").Build()

	store := storage.NewMemStore()
	service := publish.NewService(
		db.JobRepository(), db.PackageRepository(), db.VersionRepository(), store, &recordingEnqueuer{})
	res := resolver.New(db.PackageRepository(), db.VersionRepository(), 0, true)
	pool := publish.NewPool(idleProcessor{}, publish.PoolConfig{Workers: 1})
	t.Cleanup(pool.Close)
	handler := NewHandler(HandlerConfig{
		Publisher: service,
		Resolver:  res,
		Files:     db.FileRepository(),
		Store:     store,
		Events:    pool,
	})

	job, err := service.CreateJob(context.Background(), "math", "linalg", "1.0.0")
	require.NoError(t, err)
	require.NoError(t, job.MarkQueued("pending/gone.tar.gz"))
	require.NoError(t, job.MarkInProgress())
	require.NoError(t, job.MarkFailed([]string{"name mismatch"}))
	require.NoError(t, db.JobRepository().Save(job))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/publish/%d/events", job.ID()), nil)
	handler.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	payload := strings.TrimSpace(strings.TrimPrefix(w.Body.String(), "data: "))
	var event publish.JobEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	assert.Equal(t, publish.JobFailed, event.Type)
	assert.Equal(t, job.ID(), event.JobID)
	assert.Equal(t, "name mismatch", event.Error)
}
