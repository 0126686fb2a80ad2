// Package storage persists detection artifacts: the content-addressed result
// store for positive detections and the sqlite scan-history database.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"argus/core"

	"go.uber.org/zap"
)

// ResultStore writes the content of positive detections to disk, one file per
// distinct content hash. Filenames are the hash itself, so re-detecting the
// same content is naturally idempotent and two payloads can never collide
// without being byte-identical.
type ResultStore struct {
	dir    string
	logger *zap.SugaredLogger
}

// NewResultStore creates a ResultStore rooted at dir. The directory is
// created on first write, not here, so a store configured but never hit
// leaves no trace on disk.
func NewResultStore(dir string, logger *zap.SugaredLogger) (*ResultStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("result store directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ResultStore{dir: dir, logger: logger}, nil
}

// Persist writes content under its hash and returns the file path. An
// existing file for the hash is left untouched.
func (s *ResultStore) Persist(hash, content string) (string, error) {
	if !core.IsValidHash(hash) {
		return "", fmt.Errorf("invalid content hash: %q", hash)
	}

	path := filepath.Join(s.dir, hash+".txt")
	if _, err := os.Stat(path); err == nil {
		s.logger.Debugw("Detection already persisted", "hash", hash)
		return path, nil
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return "", fmt.Errorf("failed to persist detection %s: %w", hash, err)
	}

	s.logger.Infow("Persisted detection", "hash", hash, "path", path)
	return path, nil
}

// Load reads back a persisted detection by hash.
func (s *ResultStore) Load(hash string) (string, error) {
	if !core.IsValidHash(hash) {
		return "", fmt.Errorf("invalid content hash: %q", hash)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, hash+".txt"))
	if os.IsNotExist(err) {
		return "", ErrScanNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read detection %s: %w", hash, err)
	}
	return string(data), nil
}
