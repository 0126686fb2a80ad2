package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"argus/core"

	"github.com/fatih/color"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// renderResults prints per-item verdicts followed by a summary line.
func renderResults(results []*core.AnalysisResult) {
	headerColor.Println("SCAN RESULTS")
	headerColor.Println(strings.Repeat("=", 100))

	detected, whitelisted, failed := 0, 0, 0
	for _, result := range results {
		switch {
		case result.Failed():
			failed++
			errorColor.Printf("ERROR       ")
			fmt.Printf("%-50s %s\n", truncate(result.Source, 50), result.Error)
		case result.Whitelisted:
			whitelisted++
			infoColor.Printf("WHITELISTED ")
			fmt.Printf("%-50s %s rule %q\n",
				truncate(result.Source, 50), result.WhitelistDetail.Kind, result.WhitelistDetail.Name)
		case result.Obfuscated:
			detected++
			errorColor.Printf("OBFUSCATED  ")
			fmt.Printf("%-50s score=%.4f model=%s\n",
				truncate(result.Source, 50), result.ObfuscatedScore, result.Model)
			if result.ResultLocation != "" {
				fmt.Printf("            persisted: %s\n", result.ResultLocation)
			}
		default:
			successColor.Printf("CLEAN       ")
			fmt.Printf("%-50s score=%.4f\n", truncate(result.Source, 50), result.ObfuscatedScore)
		}
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("scanned=%d obfuscated=%d whitelisted=%d errors=%d\n",
		len(results), detected, whitelisted, failed)
}

// renderJSON prints results as a JSON array to stdout.
func renderJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderScripts prints reassembled scripts with completeness metadata.
func renderScripts(scripts []core.ReassembledScript) {
	headerColor.Println("REASSEMBLED SCRIPTS")
	headerColor.Println(strings.Repeat("=", 100))

	complete := 0
	for _, s := range scripts {
		state := "partial"
		if s.Reassembled {
			state = "complete"
			complete++
		}
		fmt.Printf("%-38s %-9s chunks=%d/%d hash=%s\n",
			truncate(s.ScriptID, 38), state, s.ChunkObservedCount, s.ChunkTotalDeclared, s.Hash[:12])
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("scripts=%d complete=%d partial=%d\n", len(scripts), complete, len(scripts)-complete)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
