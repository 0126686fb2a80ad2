package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"argus/core"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const scanSchema = `
CREATE TABLE IF NOT EXISTS scans (
	scan_id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	hash TEXT NOT NULL,
	model TEXT NOT NULL,
	scanned_at TIMESTAMP NOT NULL,
	whitelisted INTEGER NOT NULL,
	whitelist_kind TEXT NOT NULL DEFAULT '',
	whitelist_name TEXT NOT NULL DEFAULT '',
	obfuscated INTEGER NOT NULL,
	obfuscated_score REAL NOT NULL,
	extraction_ns INTEGER NOT NULL,
	classification_ns INTEGER NOT NULL,
	result_location TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_scans_hash ON scans(hash, scanned_at DESC);
CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at DESC);
`

// HistoryStore records every completed scan in a sqlite database so repeat
// lookups by content hash can answer "have we seen this before" across
// process restarts.
type HistoryStore struct {
	db     *sql.DB
	closed atomic.Bool
	logger *zap.SugaredLogger
}

// NewHistoryStore opens (creating if needed) the scan-history database at
// dbPath and applies the schema.
func NewHistoryStore(dbPath string, logger *zap.SugaredLogger) (*HistoryStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL mode: a single writer never blocks history lookups from the API.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if _, err := db.Exec(scanSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply scan schema: %w", err)
	}

	logger.Infow("Scan history database ready", "path", dbPath)
	return &HistoryStore{db: db, logger: logger}, nil
}

// InsertResult records a completed scan.
func (s *HistoryStore) InsertResult(ctx context.Context, result *core.AnalysisResult) error {
	if s.closed.Load() {
		return ErrDatabaseClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (
			scan_id, source, hash, model, scanned_at,
			whitelisted, whitelist_kind, whitelist_name,
			obfuscated, obfuscated_score,
			extraction_ns, classification_ns,
			result_location, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ScanID, result.Source, result.Hash, result.Model, result.ScannedAt,
		boolToInt(result.Whitelisted), string(result.WhitelistDetail.Kind), result.WhitelistDetail.Name,
		boolToInt(result.Obfuscated), result.ObfuscatedScore,
		int64(result.ExtractionDuration), int64(result.ClassificationDuration),
		result.ResultLocation, result.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan %s: %w", result.ScanID, err)
	}
	return nil
}

// GetLatestByHash returns the most recent scan recorded for a content hash,
// or ErrScanNotFound.
func (s *HistoryStore) GetLatestByHash(ctx context.Context, hash string) (*core.AnalysisResult, error) {
	if s.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT scan_id, source, hash, model, scanned_at,
			whitelisted, whitelist_kind, whitelist_name,
			obfuscated, obfuscated_score,
			extraction_ns, classification_ns,
			result_location, error
		FROM scans WHERE hash = ?
		ORDER BY scanned_at DESC, scan_id DESC LIMIT 1`, hash)

	return scanResult(row)
}

// RecentScans returns up to limit most recent scans, newest first.
func (s *HistoryStore) RecentScans(ctx context.Context, limit int) ([]*core.AnalysisResult, error) {
	if s.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, source, hash, model, scanned_at,
			whitelisted, whitelist_kind, whitelist_name,
			obfuscated, obfuscated_score,
			extraction_ns, classification_ns,
			result_location, error
		FROM scans ORDER BY scanned_at DESC, scan_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent scans: %w", err)
	}
	defer rows.Close()

	var results []*core.AnalysisResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent scans: %w", err)
	}
	return results, nil
}

// Close releases the database connection. Further calls on the store return
// ErrDatabaseClosed.
func (s *HistoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*core.AnalysisResult, error) {
	var (
		result                  core.AnalysisResult
		whitelisted, obfuscated int
		kind, name              string
		extractNs, classifyNs   int64
		scannedAt               time.Time
	)
	err := row.Scan(
		&result.ScanID, &result.Source, &result.Hash, &result.Model, &scannedAt,
		&whitelisted, &kind, &name,
		&obfuscated, &result.ObfuscatedScore,
		&extractNs, &classifyNs,
		&result.ResultLocation, &result.Error,
	)
	if err == sql.ErrNoRows {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history row: %w", err)
	}

	result.ScannedAt = scannedAt.UTC()
	result.Whitelisted = whitelisted == 1
	result.Obfuscated = obfuscated == 1
	result.ExtractionDuration = time.Duration(extractNs)
	result.ClassificationDuration = time.Duration(classifyNs)
	if result.Whitelisted {
		result.WhitelistDetail = core.WhitelistMatch{
			Match: true,
			Kind:  core.RuleKind(kind),
			Name:  name,
		}
	}
	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
