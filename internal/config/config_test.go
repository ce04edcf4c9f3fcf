// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RewriteThreshold != 0.5 {
		t.Errorf("RewriteThreshold = %v, want 0.5", cfg.RewriteThreshold)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codescope.yaml")
	body := "rewrite_threshold: 0.8\nlog_level: debug\njava:\n  heap_mb: 4096\n  import_timeout: 1m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RewriteThreshold != 0.8 {
		t.Errorf("RewriteThreshold = %v, want 0.8", cfg.RewriteThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Java.HeapMB != 4096 || cfg.Java.ImportTimeout != time.Minute {
		t.Errorf("Java config not applied: %+v", cfg.Java)
	}
	// Untouched fields keep their defaults.
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want default 30s", cfg.RequestTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"threshold above one": "rewrite_threshold: 1.5\n",
		"bad log level":       "log_level: loud\n",
		"zero timeout":        "request_timeout: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "codescope.yaml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted invalid config %q", body)
			}
		})
	}
}
