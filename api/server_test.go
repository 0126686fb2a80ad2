package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"argus/classifier"
	"argus/core"
	"argus/detect"
	"argus/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, script string) ([]float64, error) {
	return make([]float64, 32), nil
}

func (stubExtractor) Name() string { return "stub" }

type stubReloader struct {
	calls int
}

func (r *stubReloader) Reload() {
	r.calls++
}

func newTestServer(t *testing.T, history *storage.HistoryStore, reloader Reloader) *Server {
	t.Helper()
	engine, err := detect.NewEngine(&detect.Config{
		Extractor: stubExtractor{},
		Logger:    zap.NewNop().Sugar(),
	})
	require.NoError(t, err)

	server, err := NewServer(&Config{
		Engine:    engine,
		History:   history,
		Whitelist: reloader,
		Logger:    zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	return server
}

func postScan(t *testing.T, server *Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleScan(t *testing.T) {
	server := newTestServer(t, nil, nil)

	rec := postScan(t, server, ScanRequest{Source: "api-client", Content: "Write-Host 'hi'"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "api-client", result.Source)
	assert.Equal(t, core.HashContent("Write-Host 'hi'"), result.Hash)
	assert.Equal(t, classifier.ModelDefault, result.Model)
	assert.NotEmpty(t, result.ScanID)

	// Raw script content never echoes back through the API.
	assert.Empty(t, result.Content)
}

func TestHandleScan_MissingContent(t *testing.T) {
	server := newTestServer(t, nil, nil)

	rec := postScan(t, server, map[string]string{"source": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScan_ByURL(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Invoke-Item notepad"))
	}))
	defer backend.Close()

	server := newTestServer(t, nil, nil)
	rec := postScan(t, server, ScanRequest{URL: backend.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, backend.URL, result.Source)
	assert.Equal(t, core.HashContent("Invoke-Item notepad"), result.Hash)
}

func TestHandleScan_URLFetchFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer backend.Close()

	server := newTestServer(t, nil, nil)
	rec := postScan(t, server, ScanRequest{URL: backend.URL})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result core.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Failed())
	assert.Equal(t, backend.URL, result.Source)
}

func TestHandleScan_UnknownModel(t *testing.T) {
	server := newTestServer(t, nil, nil)
	rec := postScan(t, server, ScanRequest{Content: "Get-Date", Model: "nonexistent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScan_ModelOverride(t *testing.T) {
	server := newTestServer(t, nil, nil)
	rec := postScan(t, server, ScanRequest{Content: "Get-Date", Model: classifier.ModelDeep})
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, classifier.ModelDeep, result.Model)
}

func TestHandleScan_MalformedBody(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScan_RecordsHistory(t *testing.T) {
	history, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "argus.db"), nil)
	require.NoError(t, err)
	defer history.Close()

	server := newTestServer(t, history, nil)
	rec := postScan(t, server, ScanRequest{Content: "Get-Date"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := history.GetLatestByHash(context.Background(), core.HashContent("Get-Date"))
	require.NoError(t, err)
	assert.Equal(t, "api", stored.Source)
}

func TestHandleGetScan(t *testing.T) {
	history, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "argus.db"), nil)
	require.NoError(t, err)
	defer history.Close()

	server := newTestServer(t, history, nil)
	require.Equal(t, http.StatusOK, postScan(t, server, ScanRequest{Content: "Get-Date"}).Code)

	hash := core.HashContent("Get-Date")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+hash, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, hash, result.Hash)
}

func TestHandleGetScan_InvalidHash(t *testing.T) {
	history, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "argus.db"), nil)
	require.NoError(t, err)
	defer history.Close()

	server := newTestServer(t, history, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/zzzz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetScan_Unknown(t *testing.T) {
	history, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "argus.db"), nil)
	require.NoError(t, err)
	defer history.Close()

	server := newTestServer(t, history, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+core.HashContent("never"), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetScan_HistoryDisabled(t *testing.T) {
	server := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+core.HashContent("x"), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleReload(t *testing.T) {
	reloader := &stubReloader{}
	server := newTestServer(t, nil, reloader)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/whitelist/reload", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, reloader.calls)
}

func TestHandleReload_Disabled(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/whitelist/reload", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, classifier.ModelDefault, body["model"])
}
