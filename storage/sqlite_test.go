package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "argus.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testResult(scanID, content string, at time.Time) *core.AnalysisResult {
	return &core.AnalysisResult{
		ScanID:                 scanID,
		Source:                 "a.ps1",
		Hash:                   core.HashContent(content),
		Model:                  "default",
		ScannedAt:              at,
		Obfuscated:             true,
		ObfuscatedScore:        0.91,
		ExtractionDuration:     3 * time.Millisecond,
		ClassificationDuration: 40 * time.Microsecond,
		ResultLocation:         "/data/results/x.txt",
	}
}

func TestHistoryStore_InsertAndGetLatest(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertResult(ctx, testResult("scan-1", "same body", base)))
	require.NoError(t, store.InsertResult(ctx, testResult("scan-2", "same body", base.Add(time.Hour))))

	got, err := store.GetLatestByHash(ctx, core.HashContent("same body"))
	require.NoError(t, err)
	assert.Equal(t, "scan-2", got.ScanID)
	assert.Equal(t, base.Add(time.Hour), got.ScannedAt)
	assert.True(t, got.Obfuscated)
	assert.Equal(t, 0.91, got.ObfuscatedScore)
	assert.Equal(t, 3*time.Millisecond, got.ExtractionDuration)
	assert.Equal(t, "/data/results/x.txt", got.ResultLocation)
}

func TestHistoryStore_GetLatestUnknownHash(t *testing.T) {
	store := newTestHistory(t)

	_, err := store.GetLatestByHash(context.Background(), core.HashContent("never scanned"))
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestHistoryStore_WhitelistedRoundTrip(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	result := &core.AnalysisResult{
		ScanID:      "scan-wl",
		Source:      "stdin",
		Hash:        core.HashContent("benign"),
		Model:       "default",
		ScannedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Whitelisted: true,
		WhitelistDetail: core.WhitelistMatch{
			Match: true,
			Kind:  core.RuleKindContent,
			Name:  "deploy-banner",
		},
	}
	require.NoError(t, store.InsertResult(ctx, result))

	got, err := store.GetLatestByHash(ctx, result.Hash)
	require.NoError(t, err)
	assert.True(t, got.Whitelisted)
	assert.Equal(t, core.RuleKindContent, got.WhitelistDetail.Kind)
	assert.Equal(t, "deploy-banner", got.WhitelistDetail.Name)
	assert.False(t, got.Obfuscated)
}

func TestHistoryStore_RecentScans(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := testResult("scan-"+string(rune('a'+i)), "body", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.InsertResult(ctx, r))
	}

	recent, err := store.RecentScans(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "scan-e", recent[0].ScanID)
	assert.Equal(t, "scan-d", recent[1].ScanID)
	assert.Equal(t, "scan-c", recent[2].ScanID)
}

func TestHistoryStore_ClosedStoreRejectsCalls(t *testing.T) {
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "argus.db"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, store.InsertResult(ctx, testResult("scan-1", "x", at)), ErrDatabaseClosed)

	_, err = store.GetLatestByHash(ctx, core.HashContent("x"))
	assert.ErrorIs(t, err, ErrDatabaseClosed)

	_, err = store.RecentScans(ctx, 10)
	assert.ErrorIs(t, err, ErrDatabaseClosed)

	// Double close is a no-op.
	assert.NoError(t, store.Close())
}

func TestHistoryStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argus.db")

	store, err := NewHistoryStore(path, nil)
	require.NoError(t, err)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertResult(context.Background(), testResult("scan-1", "persisted", at)))
	require.NoError(t, store.Close())

	reopened, err := NewHistoryStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetLatestByHash(context.Background(), core.HashContent("persisted"))
	require.NoError(t, err)
	assert.Equal(t, "scan-1", got.ScanID)
}
