// Package config loads and validates the Argus service configuration from a
// YAML file, with ARGUS_* environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DataPaths holds data directory and file path configuration. Empty values
// are derived from DataDir at load time.
type DataPaths struct {
	// DataDir is the base data directory (ARGUS_DATA_PATHS_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// ResultsDir is where positive detections are persisted content-addressed
	ResultsDir string `mapstructure:"results_dir"`
	// HistoryDB is the sqlite scan-history database path
	HistoryDB string `mapstructure:"history_db"`
	// ModelFile is an optional YAML file overriding the built-in model vectors
	ModelFile string `mapstructure:"model_file"`
}

// Config holds all configuration for the Argus service.
type Config struct {
	Logging struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"logging"`

	DataPaths DataPaths `mapstructure:"data_paths"`

	Whitelist struct {
		KnownGoodDir     string `mapstructure:"known_good_dir"`
		HashRulesFile    string `mapstructure:"hash_rules_file"`
		ContentRulesFile string `mapstructure:"content_rules_file"`
		RegexRulesFile   string `mapstructure:"regex_rules_file"`
		RegexTimeoutMs   int    `mapstructure:"regex_timeout_ms"`
		Watch            bool   `mapstructure:"watch"`
	} `mapstructure:"whitelist"`

	Classifier struct {
		Model string `mapstructure:"model"`
	} `mapstructure:"classifier"`

	Engine struct {
		WorkerCount       int  `mapstructure:"worker_count"`
		CacheSize         int  `mapstructure:"cache_size"`
		PersistDetections bool `mapstructure:"persist_detections"`
		History           bool `mapstructure:"history"`
	} `mapstructure:"engine"`

	Fetch struct {
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
		RatePerSecond  int `mapstructure:"rate_per_second"`
		MaxBodyBytes   int `mapstructure:"max_body_bytes"`
	} `mapstructure:"fetch"`

	API struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"api"`
}

// Load reads configuration from the given file (optional; empty path uses
// defaults and environment only) and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARGUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.derivePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// derivePaths fills empty paths from the base data directory.
func (c *Config) derivePaths() {
	if c.DataPaths.DataDir == "" {
		c.DataPaths.DataDir = "./data"
	}
	if c.DataPaths.ResultsDir == "" {
		c.DataPaths.ResultsDir = filepath.Join(c.DataPaths.DataDir, "results")
	}
	if c.DataPaths.HistoryDB == "" {
		c.DataPaths.HistoryDB = filepath.Join(c.DataPaths.DataDir, "argus.db")
	}
}

// Validate checks configuration invariants that would otherwise surface as
// runtime failures deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	if c.Classifier.Model == "" {
		return fmt.Errorf("classifier model cannot be empty")
	}
	if c.Engine.WorkerCount < 0 {
		return fmt.Errorf("engine worker_count cannot be negative")
	}
	if c.Engine.CacheSize <= 0 {
		return fmt.Errorf("engine cache_size must be positive")
	}
	if c.Whitelist.RegexTimeoutMs <= 0 {
		return fmt.Errorf("whitelist regex_timeout_ms must be positive")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch timeout_seconds must be positive")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch max_body_bytes must be positive")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("data_paths.data_dir", "./data")
	v.SetDefault("data_paths.results_dir", "") // Empty = derive from data_dir
	v.SetDefault("data_paths.history_db", "")  // Empty = derive from data_dir
	v.SetDefault("data_paths.model_file", "")

	v.SetDefault("whitelist.known_good_dir", "")
	v.SetDefault("whitelist.hash_rules_file", "")
	v.SetDefault("whitelist.content_rules_file", "")
	v.SetDefault("whitelist.regex_rules_file", "")
	v.SetDefault("whitelist.regex_timeout_ms", 500)
	v.SetDefault("whitelist.watch", false)

	v.SetDefault("classifier.model", "default")

	v.SetDefault("engine.worker_count", 0) // 0 = sequential
	v.SetDefault("engine.cache_size", 1024)
	v.SetDefault("engine.persist_detections", false)
	v.SetDefault("engine.history", false)

	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.rate_per_second", 5)
	v.SetDefault("fetch.max_body_bytes", 10*1024*1024)

	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8335)
}
