// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath     string
	repoPath       string
	logLevelFlag   string
	logDirFlag     string
	jsonLogs       bool
	telemetryMode  string
	outputDirFlag  string
	thresholdFlag  float64
	debounceFlag   string
	watchOnceFlag  bool
	allLanguages   bool
	printGraphFlag bool

	rootCmd = &cobra.Command{
		Use:   "codescope",
		Short: "LSP-driven static analysis for multi-language repositories",
		Long: `Codescope drives one language server per detected language to build
call graphs, class hierarchies, and package dependency maps, then keeps
them current across commits with hash-based incremental re-analysis.`,
		PersistentPreRun: initRun, // Defined in main.go
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Run a full analysis of the repository",
		Run:   runAnalyze, // Defined in cmd_analyze.go
	}

	incrementalCmd = &cobra.Command{
		Use:   "incremental",
		Short: "Re-analyze only what changed since the last run",
		Run:   runIncremental, // Defined in cmd_incremental.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the repository and re-analyze on committed changes",
		Run:   runWatch, // Defined in cmd_watch.go
	}

	languagesCmd = &cobra.Command{
		Use:   "languages",
		Short: "Show the languages detected in the repository",
		Run:   runLanguages, // Defined in cmd_languages.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the codescope version",
		Run:   runVersion, // Defined in main.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", ".", "Repository root to analyze")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDirFlag, "log-dir", "", "Directory for JSON log files")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON logs on stderr")
	rootCmd.PersistentFlags().StringVar(&telemetryMode, "telemetry", "", "Telemetry exporter (stdout, none)")

	analyzeCmd.Flags().StringVarP(&outputDirFlag, "output", "o", "", "Directory for run metadata and snapshots")
	analyzeCmd.Flags().BoolVar(&printGraphFlag, "print-graph", false, "Print each language's call graph after analysis")

	incrementalCmd.Flags().StringVarP(&outputDirFlag, "output", "o", "", "Directory for run metadata and snapshots")
	incrementalCmd.Flags().Float64Var(&thresholdFlag, "rewrite-threshold", 0, "Changed-to-known ratio forcing a full run")

	watchCmd.Flags().StringVarP(&outputDirFlag, "output", "o", "", "Directory for run metadata and snapshots")
	watchCmd.Flags().StringVar(&debounceFlag, "debounce", "2s", "Quiet period before a re-analysis triggers")
	watchCmd.Flags().BoolVar(&watchOnceFlag, "once", false, "Exit after the first triggered re-analysis")

	languagesCmd.Flags().BoolVarP(&allLanguages, "all", "a", false, "Include languages below the size threshold")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(incrementalCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(versionCmd)
}
