package cmd

import (
	"context"
	"fmt"
	"os"

	"argus/config"
	"argus/ingest"
	"argus/reassembly"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReassembleCmd() *cobra.Command {
	var (
		deep    bool
		scan    bool
		model   string
		workers int
	)

	reassembleCmd := &cobra.Command{
		Use:   "reassemble [fragments.jsonl]",
		Short: "Reassemble scripts from fragmented log records",
		Long: `Read a JSON-lines stream of log fragments (from a file, or stdin when no
argument is given), stitch them back into distinct scripts, and print the
reassembled set. With --scan, each reassembled script is also run through
the detection pipeline.

Default mode drops interactive-session boilerplate and duplicate script
bodies; --deep keeps everything.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			input := os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open fragment file: %w", err)
				}
				defer f.Close()
				input = f
			}

			fragments, err := ingest.NewFragmentReader(&ingest.FragmentReaderConfig{Logger: logger}).Read(input)
			if err != nil {
				return err
			}
			if len(fragments) == 0 {
				warningColor.Println("No usable fragments in input")
				return nil
			}

			reassembler := reassembly.New(&reassembly.Config{Deep: deep, Logger: logger})
			scripts := reassembler.Reassemble(fragments)

			if !scan {
				if outputJSON {
					return renderJSON(scripts)
				}
				renderScripts(scripts)
				return nil
			}

			if deep && model == "" {
				model = "deep"
			}
			engine, err := buildEngine(cfg, logger, engineOptions{model: model, workers: workers})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
			defer cancel()
			results := engine.AnalyzeBatch(ctx, reassembly.Items(scripts))

			if outputJSON {
				return renderJSON(results)
			}
			renderResults(results)
			for _, result := range results {
				if result.Obfuscated {
					os.Exit(2)
				}
			}
			return nil
		},
	}

	reassembleCmd.Flags().BoolVar(&deep, "deep", false, "keep boilerplate and duplicate scripts")
	reassembleCmd.Flags().BoolVar(&scan, "scan", false, "scan reassembled scripts for obfuscation")
	reassembleCmd.Flags().StringVarP(&model, "model", "m", "", "classifier model for --scan")
	reassembleCmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent workers for --scan")

	return reassembleCmd
}

