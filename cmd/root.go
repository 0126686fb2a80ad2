// Package cmd provides the Argus command-line interface.
package cmd

import (
	"fmt"
	"time"

	"argus/classifier"
	"argus/config"
	"argus/core"
	"argus/detect"
	"argus/features"
	"argus/storage"
	"argus/whitelist"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Global flags shared by all subcommands.
var (
	configFile string
	outputJSON bool
	noColor    bool
	quiet      bool
)

// NewRootCmd creates the argus root command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Obfuscated script detection",
		Long: `Argus detects obfuscated scripts using a trained logistic-regression
classifier over static features, with a tiered allow-list to suppress
known-good content and a reassembler for scripts observed as log fragments.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newReassembleCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// buildLogger creates the process logger from config.
func buildLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	var zapCfg zap.Config
	if cfg.Logging.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// buildClassifier creates the classifier, applying a model-file override when
// configured.
func buildClassifier(cfg *config.Config, logger *zap.SugaredLogger) (*classifier.Classifier, error) {
	models := classifier.NewModelSet()
	if cfg.DataPaths.ModelFile != "" {
		if err := models.LoadFile(cfg.DataPaths.ModelFile); err != nil {
			return nil, fmt.Errorf("failed to load model file: %w", err)
		}
		logger.Infow("Loaded model overrides", "path", cfg.DataPaths.ModelFile, "models", models.Names())
	}
	return classifier.New(&classifier.Config{Models: models, Logger: logger}), nil
}

// buildEvaluator creates the allow-list evaluator from config.
func buildEvaluator(cfg *config.Config, logger *zap.SugaredLogger) *whitelist.Evaluator {
	return whitelist.NewEvaluator(&whitelist.Config{
		KnownGoodDir:     cfg.Whitelist.KnownGoodDir,
		HashRulesFile:    cfg.Whitelist.HashRulesFile,
		ContentRulesFile: cfg.Whitelist.ContentRulesFile,
		RegexRulesFile:   cfg.Whitelist.RegexRulesFile,
		RegexTimeout:     regexTimeout(cfg),
		Logger:           logger,
	})
}

// buildEngine wires the full detection pipeline from config plus per-run
// options.
func buildEngine(cfg *config.Config, logger *zap.SugaredLogger, opts engineOptions) (*detect.Engine, error) {
	clf, err := buildClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	engineCfg := &detect.Config{
		Classifier: clf,
		Whitelist:  opts.evaluator,
		Extractor:  features.NewExtractor(logger),
		Model:      opts.model,
		RunRules:   opts.runRules,
		Workers:    opts.workers,
		CacheSize:  cfg.Engine.CacheSize,
		Logger:     logger,
	}
	if engineCfg.Whitelist == nil {
		engineCfg.Whitelist = buildEvaluator(cfg, logger)
	}
	if engineCfg.Model == "" {
		engineCfg.Model = cfg.Classifier.Model
	}
	if engineCfg.Workers == 0 {
		engineCfg.Workers = cfg.Engine.WorkerCount
	}

	if opts.persist || cfg.Engine.PersistDetections {
		store, err := storage.NewResultStore(cfg.DataPaths.ResultsDir, logger)
		if err != nil {
			return nil, err
		}
		engineCfg.Persister = store
		engineCfg.PersistDetections = true
	}

	return detect.NewEngine(engineCfg)
}

type engineOptions struct {
	model     string
	workers   int
	persist   bool
	runRules  []core.WhitelistRule
	evaluator *whitelist.Evaluator
}

func regexTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Whitelist.RegexTimeoutMs) * time.Millisecond
}
