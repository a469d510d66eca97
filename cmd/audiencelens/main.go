// Package main is the audiencelens CLI entry point and command
// registration hub, mirroring cmd/nerd's file-per-concern layout.
//
// # File Index
//
//   - main.go       - entry point, rootCmd, global flags, logger setup
//   - service.go    - config loading, buildService() dependency wiring
//   - cmd_serve.go  - serveCmd
//   - cmd_search.go - searchCmd (one-shot CLI search against the façade)
//   - cmd_stats.go  - statsCmd
//   - cmd_ingest.go - ingestCmd (backfill missing embeddings)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"audiencelens/internal/logging"
)

var (
	verbose    bool
	configPath string
	workspace  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "audiencelens",
	Short: "audiencelens - natural-language audience segmentation engine",
	Long: `audiencelens discovers relevant audience variables from a free-form
description, lets the user refine the selection through a conversational
session, and hands the confirmed set to downstream clustering.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML (defaults built in if absent)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory for logs and relative paths (default: current)")

	rootCmd.AddCommand(serveCmd, searchCmd, statsCmd, ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
