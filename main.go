// Package main is the entry point for the Argus obfuscated-script detector.
package main

import (
	"fmt"
	"os"

	"argus/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
