package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "default", cfg.Classifier.Model)
	assert.Equal(t, 0, cfg.Engine.WorkerCount)
	assert.Equal(t, 1024, cfg.Engine.CacheSize)
	assert.Equal(t, 500, cfg.Whitelist.RegexTimeoutMs)
	assert.Equal(t, 8335, cfg.API.Port)

	// Empty paths derive from data_dir.
	assert.Equal(t, filepath.Join("./data", "results"), cfg.DataPaths.ResultsDir)
	assert.Equal(t, filepath.Join("./data", "argus.db"), cfg.DataPaths.HistoryDB)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "argus.yaml")
	content := []byte(`
logging:
  level: debug
classifier:
  model: command
engine:
  worker_count: 8
  persist_detections: true
data_paths:
  data_dir: /var/lib/argus
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "command", cfg.Classifier.Model)
	assert.Equal(t, 8, cfg.Engine.WorkerCount)
	assert.True(t, cfg.Engine.PersistDetections)
	assert.Equal(t, filepath.Join("/var/lib/argus", "results"), cfg.DataPaths.ResultsDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Classifier.Model = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Engine.WorkerCount = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Whitelist.RegexTimeoutMs = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.API.Port = 70000
	assert.Error(t, cfg.Validate())
}
