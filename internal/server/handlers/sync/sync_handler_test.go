package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlab/codesync/internal/db"
	"github.com/mirrorlab/codesync/internal/merkle"
	"github.com/mirrorlab/codesync/internal/sdk"
	"github.com/mirrorlab/codesync/internal/server/handlers/api"
	"github.com/mirrorlab/codesync/internal/server/index"
)

type nopPipeline struct{}

func (nopPipeline) ProcessFile(_ context.Context, path string, content []byte) ([]string, error) {
	return []string{merkle.HashBytes(append([]byte(path), content...))}, nil
}

func (nopPipeline) EvictChunks(context.Context, []string) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	sqlite, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	store, err := index.NewStore(sqlite)
	require.NoError(t, err)
	svc := index.NewService(store, nopPipeline{})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(svc)
	r.POST("/api/v1/sync/register", h.Register)
	r.POST("/api/v1/sync/probe", h.Probe)
	r.POST("/api/v1/sync/negotiate", h.Negotiate)
	r.POST("/api/v1/sync/push", h.PushChanges)
	r.POST("/api/v1/sync/removals", h.PushRemovals)
	r.GET("/api/v1/sync/projects", h.ListProjects)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func register(t *testing.T, r *gin.Engine, projectID string) {
	t.Helper()
	code := doJSON(t, r, http.MethodPost, "/api/v1/sync/register",
		sdk.RegisterRequest{ProjectID: projectID, Name: "demo"}, nil)
	require.Equal(t, http.StatusOK, code)
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRouter(t)

	code := doJSON(t, r, http.MethodPost, "/api/v1/sync/register", sdk.RegisterRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProbeUnknownProject(t *testing.T) {
	r := newTestRouter(t)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(sdk.ProbeRequest{ProjectID: "nope"}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/probe", &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var apiErr api.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, api.CodeProjectNotFound, apiErr.Code)
}

func TestSyncRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "p1")

	content := []byte("package a\n")
	hash := merkle.HashBytes(content)

	// fresh project probes as out of date
	var probe sdk.ProbeResponse
	code := doJSON(t, r, http.MethodPost, "/api/v1/sync/probe",
		sdk.ProbeRequest{ProjectID: "p1", RootHash: "nonempty"}, &probe)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, probe.UpToDate)

	var neg sdk.NegotiateResponse
	code = doJSON(t, r, http.MethodPost, "/api/v1/sync/negotiate", sdk.NegotiateRequest{
		ProjectID: "p1",
		Leaves:    []sdk.TreeLeaf{{Path: "a.go", Hash: hash}},
	}, &neg)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"a.go"}, neg.ChangedPaths)
	assert.Empty(t, neg.RemovedPaths)

	var push sdk.PushChangesResponse
	code = doJSON(t, r, http.MethodPost, "/api/v1/sync/push", sdk.PushChangesRequest{
		ProjectID: "p1",
		Files:     []sdk.FileUpload{{Path: "a.go", Content: content, ClaimedHash: hash}},
	}, &push)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"a.go"}, push.Accepted)
	assert.Empty(t, push.Rejected)

	// the server's acknowledged root now matches the client tree
	tree, err := merkle.FromLeaves("root", map[string]string{"a.go": hash})
	require.NoError(t, err)
	code = doJSON(t, r, http.MethodPost, "/api/v1/sync/probe",
		sdk.ProbeRequest{ProjectID: "p1", RootHash: tree.RootHash}, &probe)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, probe.UpToDate)

	var projects sdk.ProjectsResponse
	code = doJSON(t, r, http.MethodGet, "/api/v1/sync/projects", nil, &projects)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, projects.Count)
	assert.Equal(t, 1, projects.Projects[0].FileCount)
	assert.Equal(t, tree.RootHash, projects.Projects[0].RootHash)
}

func TestPushRejectsBadHash(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "p1")

	var push sdk.PushChangesResponse
	code := doJSON(t, r, http.MethodPost, "/api/v1/sync/push", sdk.PushChangesRequest{
		ProjectID: "p1",
		Files: []sdk.FileUpload{{
			Path:        "a.go",
			Content:     []byte("actual"),
			ClaimedHash: merkle.HashBytes([]byte("claimed")),
		}},
	}, &push)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, push.Accepted)
	require.Len(t, push.Rejected, 1)
	assert.Equal(t, "a.go", push.Rejected[0].Path)
	assert.Equal(t, sdk.CodeHashMismatch, push.Rejected[0].Reason)
}

func TestRemovals(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "p1")

	content := []byte("x\n")
	hash := merkle.HashBytes(content)
	code := doJSON(t, r, http.MethodPost, "/api/v1/sync/push", sdk.PushChangesRequest{
		ProjectID: "p1",
		Files:     []sdk.FileUpload{{Path: "a.go", Content: content, ClaimedHash: hash}},
	}, nil)
	require.Equal(t, http.StatusOK, code)

	var rm sdk.PushRemovalsResponse
	code = doJSON(t, r, http.MethodPost, "/api/v1/sync/removals", sdk.PushRemovalsRequest{
		ProjectID: "p1",
		Paths:     []string{"a.go"},
	}, &rm)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, rm.Ack)

	var probe sdk.ProbeResponse
	code = doJSON(t, r, http.MethodPost, "/api/v1/sync/probe",
		sdk.ProbeRequest{ProjectID: "p1", RootHash: ""}, &probe)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, probe.UpToDate, "empty snapshot matches empty root hash")
}
