// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config holds run-scoped configuration for codescope.
//
// There is deliberately no package-level singleton: a Config is loaded
// once per analysis run and passed explicitly into every constructor
// that needs it. Two concurrent runs can therefore carry different
// settings without interfering.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the explicit configuration object for one analysis run.
type Config struct {
	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// LogDir enables JSON file logging when non-empty.
	LogDir string `yaml:"log_dir"`

	// OutputDir is where run metadata (iterative_metadata.json and the
	// legacy codeboarding_version.json) is read and written.
	// Defaults to ".codescope" under the analyzed repository.
	OutputDir string `yaml:"output_dir"`

	// StoreDir is the BadgerDB directory for analysis model snapshots.
	// Defaults to "<OutputDir>/store".
	StoreDir string `yaml:"store_dir"`

	// MinLanguagePercent is the repository share (0-100) below which a
	// detected language gets no LSP client.
	MinLanguagePercent float64 `yaml:"min_language_percent" validate:"gte=0,lte=100"`

	// RewriteThreshold is the changed-to-known file ratio above which
	// incremental analysis falls back to a full run. Kept configurable
	// rather than hardcoded; 0.5 matches prior behavior.
	RewriteThreshold float64 `yaml:"rewrite_threshold" validate:"gt=0,lte=1"`

	// InitializeTimeout bounds the LSP initialize handshake. Deliberately
	// long: cold-start indexing on large repositories can take minutes.
	InitializeTimeout time.Duration `yaml:"initialize_timeout" validate:"gt=0"`

	// RequestTimeout bounds every per-file LSP request.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`

	// TypeScript holds typescript-language-server bootstrap settings.
	TypeScript TypeScriptConfig `yaml:"typescript"`

	// Java holds jdtls bootstrap settings.
	Java JavaConfig `yaml:"java"`
}

// TypeScriptConfig customizes the TypeScript client bootstrap.
type TypeScriptConfig struct {
	// WarmupDelay is how long to wait after opening representative files
	// before validating the workspace.
	WarmupDelay time.Duration `yaml:"warmup_delay" validate:"gte=0"`

	// RepresentativeFiles is how many source files to open during
	// workspace bootstrap.
	RepresentativeFiles int `yaml:"representative_files" validate:"gte=1"`
}

// JavaConfig customizes the Java client bootstrap.
type JavaConfig struct {
	// HeapMB sizes the jdtls JVM heap (-Xmx).
	HeapMB int `yaml:"heap_mb" validate:"gte=256"`

	// ImportTimeout bounds the wait for the asynchronous
	// project-import-complete notification.
	ImportTimeout time.Duration `yaml:"import_timeout" validate:"gt=0"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel:           "info",
		OutputDir:          ".codescope",
		MinLanguagePercent: 1.0,
		RewriteThreshold:   0.5,
		InitializeTimeout:  5 * time.Minute,
		RequestTimeout:     30 * time.Second,
		TypeScript: TypeScriptConfig{
			WarmupDelay:         2 * time.Second,
			RepresentativeFiles: 3,
		},
		Java: JavaConfig{
			HeapMB:        2048,
			ImportTimeout: 3 * time.Minute,
		},
	}
}

// Load reads a YAML config file, layers it over the defaults, and
// validates the result.
//
// Inputs:
//
//	path - Config file path; "" returns the defaults unchanged.
//
// Outputs:
//
//	Config - The merged configuration
//	error - Non-nil if the file is unreadable, malformed, or invalid
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}
