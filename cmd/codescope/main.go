// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command codescope analyzes multi-language repositories through their
// language servers.
//
// Usage:
//
//	codescope analyze --repo /path/to/project
//	codescope incremental --repo /path/to/project
//	codescope watch --repo /path/to/project
//	codescope languages --repo /path/to/project
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/codescope/internal/config"
	"github.com/AleutianAI/codescope/internal/telemetry"
	"github.com/AleutianAI/codescope/pkg/logging"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

var (
	cfg               config.Config
	logger            *logging.Logger
	telemetryShutdown func(context.Context) error
)

func main() {
	defer cleanup()
	if err := rootCmd.Execute(); err != nil {
		cleanup()
		os.Exit(1)
	}
}

func cleanup() {
	if telemetryShutdown != nil {
		if err := telemetryShutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
		telemetryShutdown = nil
	}
	if logger != nil {
		logger.Close()
		logger = nil
	}
}

// initRun loads configuration and wires logging and telemetry before
// any subcommand runs.
func initRun(cmd *cobra.Command, args []string) {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		fatalf("load configuration: %v", err)
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if logDirFlag != "" {
		cfg.LogDir = logDirFlag
	}
	if outputDirFlag != "" {
		cfg.OutputDir = outputDirFlag
	}
	if thresholdFlag > 0 {
		cfg.RewriteThreshold = thresholdFlag
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = filepath.Join(cfg.OutputDir, "store")
	}

	// Plain text for humans, JSON when piped or requested.
	useJSON := jsonLogs || !isatty.IsTerminal(os.Stderr.Fd())
	logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "codescope",
		JSON:    useJSON,
	})
	slog.SetDefault(logger.With(slog.String("run_id", uuid.NewString())).Slog())

	tcfg := telemetry.DefaultConfig(version)
	if telemetryMode != "" {
		tcfg.TraceExporter = telemetryMode
		tcfg.MetricExporter = telemetryMode
	}
	telemetryShutdown, err = telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		fatalf("init telemetry: %v", err)
	}
}

// fatalf logs the error and exits non-zero. Used from Run functions,
// which have no error return.
func fatalf(format string, args ...any) {
	if logger != nil {
		logger.Error(fmt.Sprintf(format, args...))
	} else {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	cleanup()
	os.Exit(1)
}

// repoAbs resolves the --repo flag to an absolute path.
func repoAbs() string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		fatalf("resolve repository path %s: %v", repoPath, err)
	}
	return abs
}

// metadataDir is where run metadata lives; relative output dirs are
// anchored at the repository root.
func metadataDir(repo string) string {
	if filepath.IsAbs(cfg.OutputDir) {
		return cfg.OutputDir
	}
	return filepath.Join(repo, cfg.OutputDir)
}

// storeDir is where analysis snapshots live.
func storeDir(repo string) string {
	if filepath.IsAbs(cfg.StoreDir) {
		return cfg.StoreDir
	}
	return filepath.Join(repo, cfg.StoreDir)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("codescope %s\n", version)
}
