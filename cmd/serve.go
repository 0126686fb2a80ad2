package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"argus/api"
	"argus/config"
	"argus/ingest"
	"argus/storage"
	"argus/whitelist"

	"github.com/spf13/cobra"
)

const shutdownGrace = 15 * time.Second

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Argus HTTP API",
		Long: `Run the detection pipeline as a long-lived HTTP service. Scan requests
are accepted on /api/v1/scan, scan history is queryable by content hash,
and allow-list rule files are watched for changes when configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			evaluator := buildEvaluator(cfg, logger)

			var watcher *whitelist.Watcher
			if cfg.Whitelist.Watch {
				watcher, err = whitelist.NewWatcher(evaluator, []string{
					cfg.Whitelist.KnownGoodDir,
					cfg.Whitelist.HashRulesFile,
					cfg.Whitelist.ContentRulesFile,
					cfg.Whitelist.RegexRulesFile,
				}, logger)
				if err != nil {
					return err
				}
				watcher.Start()
				defer watcher.Stop()
			}

			engine, err := buildEngine(cfg, logger, engineOptions{
				workers:   cfg.Engine.WorkerCount,
				evaluator: evaluator,
			})
			if err != nil {
				return err
			}

			var history *storage.HistoryStore
			if cfg.Engine.History {
				history, err = storage.NewHistoryStore(cfg.DataPaths.HistoryDB, logger)
				if err != nil {
					return err
				}
				defer history.Close()
			}

			server, err := api.NewServer(&api.Config{
				Host:      cfg.API.Host,
				Port:      cfg.API.Port,
				Engine:    engine,
				History:   history,
				Whitelist: evaluator,
				Fetcher: ingest.NewFetcher(&ingest.FetcherConfig{
					Timeout:       time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
					RatePerSecond: cfg.Fetch.RatePerSecond,
					MaxBodyBytes:  int64(cfg.Fetch.MaxBodyBytes),
					Logger:        logger,
				}),
				Logger: logger,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Infow("Shutting down", "signal", sig.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			return <-errCh
		},
	}
	return serveCmd
}
