package storage

import (
	"os"
	"path/filepath"
	"testing"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStore_PersistAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	store, err := NewResultStore(dir, nil)
	require.NoError(t, err)

	// Directory is created lazily, not at construction.
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	content := "IEX $payload"
	hash := core.HashContent(content)

	path, err := store.Persist(hash, content)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, hash+".txt"), path)

	loaded, err := store.Load(hash)
	require.NoError(t, err)
	assert.Equal(t, content, loaded)
}

func TestResultStore_PersistIsIdempotent(t *testing.T) {
	store, err := NewResultStore(t.TempDir(), nil)
	require.NoError(t, err)

	content := "script body"
	hash := core.HashContent(content)

	first, err := store.Persist(hash, content)
	require.NoError(t, err)

	// The second write for the same hash leaves the existing file alone.
	require.NoError(t, os.WriteFile(first, []byte(content), 0640))
	second, err := store.Persist(hash, content)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	loaded, err := store.Load(hash)
	require.NoError(t, err)
	assert.Equal(t, content, loaded)
}

func TestResultStore_RejectsInvalidHash(t *testing.T) {
	store, err := NewResultStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Persist("../../etc/passwd", "x")
	assert.Error(t, err)

	_, err = store.Load("not-a-hash")
	assert.Error(t, err)
}

func TestResultStore_LoadMissing(t *testing.T) {
	store, err := NewResultStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Load(core.HashContent("never persisted"))
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestNewResultStore_EmptyDir(t *testing.T) {
	_, err := NewResultStore("", nil)
	assert.Error(t, err)
}
