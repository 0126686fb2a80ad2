package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"argus/config"
	"argus/core"
	"argus/detect"
	"argus/ingest"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const scanTimeout = 5 * time.Minute

func newScanCmd() *cobra.Command {
	var (
		model         string
		workers       int
		persist       bool
		readStdin     bool
		allowHashes   []string
		allowContents []string
		allowPatterns []string
	)

	scanCmd := &cobra.Command{
		Use:   "scan [file|url ...]",
		Short: "Scan scripts for obfuscation",
		Long: `Scan script content from files, URLs or stdin. Each item is hashed,
checked against the allow-list and, on a miss, scored by the selected
classifier model. Exit code 2 means at least one item was flagged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !readStdin {
				return fmt.Errorf("nothing to scan: pass files/URLs or --stdin")
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			logger := zap.NewNop().Sugar()
			if !quiet {
				if logger, err = buildLogger(cfg); err != nil {
					return err
				}
			}

			engine, err := buildEngine(cfg, logger, engineOptions{
				model:    model,
				workers:  workers,
				persist:  persist,
				runRules: runRulesFromFlags(allowHashes, allowContents, allowPatterns),
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
			defer cancel()

			entries := collectEntries(ctx, cfg, logger, args, readStdin)
			items := make([]core.InputItem, 0, len(entries))
			for _, entry := range entries {
				if entry.failed == nil {
					items = append(items, entry.item)
				}
			}

			var spin *spinner.Spinner
			if !quiet && !outputJSON {
				spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				spin.Suffix = fmt.Sprintf(" scanning %d item(s)...", len(items))
				spin.Start()
			}
			scanned := engine.AnalyzeBatch(ctx, items)
			if spin != nil {
				spin.Stop()
			}

			// Stitch failed targets back into their argument positions.
			results := make([]*core.AnalysisResult, 0, len(entries))
			next := 0
			for _, entry := range entries {
				if entry.failed != nil {
					results = append(results, entry.failed)
					continue
				}
				results = append(results, scanned[next])
				next++
			}

			if outputJSON {
				if err := renderJSON(results); err != nil {
					return err
				}
			} else {
				renderResults(results)
			}

			for _, result := range results {
				if result.Obfuscated {
					os.Exit(2)
				}
			}
			return nil
		},
	}

	scanCmd.Flags().StringVarP(&model, "model", "m", "", "classifier model (default/deep/command)")
	scanCmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent workers for batch scans (0 = sequential)")
	scanCmd.Flags().BoolVar(&persist, "persist", false, "persist content of positive detections")
	scanCmd.Flags().BoolVar(&readStdin, "stdin", false, "read script content from stdin")
	scanCmd.Flags().StringArrayVar(&allowHashes, "allow-hash", nil, "per-run allow-list hash (repeatable)")
	scanCmd.Flags().StringArrayVar(&allowContents, "allow-content", nil, "per-run allow-list substring (repeatable)")
	scanCmd.Flags().StringArrayVar(&allowPatterns, "allow-regex", nil, "per-run allow-list regex (repeatable)")

	return scanCmd
}

// scanEntry is one scan target in argument order: either a ready input item
// or a result that already failed during acquisition.
type scanEntry struct {
	item   core.InputItem
	failed *core.AnalysisResult
}

// collectEntries gathers scan input from stdin, local files and URLs, in
// argument order. A target that cannot be fetched or read becomes a failed
// entry; it never aborts the rest of the run.
func collectEntries(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, args []string, readStdin bool) []scanEntry {
	var entries []scanEntry

	if readStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			entries = append(entries, scanEntry{failed: unavailableResult("stdin", err)})
		} else {
			entries = append(entries, scanEntry{item: ingest.ItemFromText("stdin", string(data))})
		}
	}

	var fetcher *ingest.Fetcher
	for _, target := range args {
		if ingest.IsURL(target) {
			if fetcher == nil {
				fetcher = ingest.NewFetcher(&ingest.FetcherConfig{
					Timeout:       time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
					RatePerSecond: cfg.Fetch.RatePerSecond,
					MaxBodyBytes:  int64(cfg.Fetch.MaxBodyBytes),
					Logger:        logger,
				})
			}
			item, err := fetcher.FetchURL(ctx, target)
			if err != nil {
				logger.Warnw("Skipping unfetchable target", "target", target, "error", err)
				entries = append(entries, scanEntry{failed: unavailableResult(target, err)})
				continue
			}
			entries = append(entries, scanEntry{item: item})
			continue
		}

		item, err := ingest.ItemFromFile(target)
		if err != nil {
			logger.Warnw("Skipping unreadable target", "target", target, "error", err)
			entries = append(entries, scanEntry{failed: unavailableResult(target, err)})
			continue
		}
		entries = append(entries, scanEntry{item: item})
	}
	return entries
}

// unavailableResult builds the terminal result for a target whose content
// could not be acquired.
func unavailableResult(source string, err error) *core.AnalysisResult {
	result := core.NewAnalysisResult(core.InputItem{Source: source})
	result.Error = fmt.Errorf("%w: %v", detect.ErrContentUnavailable, err).Error()
	return result
}

// runRulesFromFlags converts repeatable allow-list flags into per-run rules.
func runRulesFromFlags(hashes, contents, patterns []string) []core.WhitelistRule {
	var rules []core.WhitelistRule
	for i, v := range hashes {
		rules = append(rules, core.WhitelistRule{
			Kind: core.RuleKindHash, Name: fmt.Sprintf("cli-hash-%d", i), Value: v,
		})
	}
	for i, v := range contents {
		rules = append(rules, core.WhitelistRule{
			Kind: core.RuleKindContent, Name: fmt.Sprintf("cli-content-%d", i), Value: v,
		})
	}
	for i, v := range patterns {
		rules = append(rules, core.WhitelistRule{
			Kind: core.RuleKindRegex, Name: fmt.Sprintf("cli-regex-%d", i), Value: v,
		})
	}
	return rules
}
