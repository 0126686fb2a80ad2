package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Write-Host 'remote'"))
	}))
	defer server.Close()

	f := NewFetcher(nil)
	item, err := f.FetchURL(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, item.Source)
	assert.Equal(t, "Write-Host 'remote'", item.Content)
}

func TestFetchURL_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher(nil).FetchURL(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchURL_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer server.Close()

	f := NewFetcher(&FetcherConfig{MaxBodyBytes: 64})
	_, err := f.FetchURL(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetchURL_ExactlyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 64)))
	}))
	defer server.Close()

	f := NewFetcher(&FetcherConfig{MaxBodyBytes: 64})
	item, err := f.FetchURL(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, item.Content, 64)
}

func TestFetchURL_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	_, err := NewFetcher(nil).FetchURL(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestFetchURL_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(nil).FetchURL(ctx, "http://127.0.0.1:1/never")
	assert.Error(t, err)
}

func TestItemFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.ps1")
	require.NoError(t, os.WriteFile(path, []byte("Get-Process"), 0600))

	item, err := ItemFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, item.Source)
	assert.Equal(t, "Get-Process", item.Content)

	_, err = ItemFromFile(filepath.Join(t.TempDir(), "missing.ps1"))
	assert.Error(t, err)
}

func TestItemFromFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ps1")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := ItemFromFile(path)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("http://example.com/a.ps1"))
	assert.True(t, IsURL("https://example.com/a.ps1"))
	assert.False(t, IsURL("/tmp/a.ps1"))
	assert.False(t, IsURL("httpd.conf"))
}
