// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lang detects the programming languages present in a source
// repository and maps them to LSP server configurations.
package lang

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/mod/modfile"

	"github.com/AleutianAI/codescope/internal/ignore"
)

// Detector scans a repository and reports detected languages ordered
// by size. The result decides which LSP clients get instantiated.
//
// Thread Safety: safe for concurrent use; Detect shares no state
// between calls.
type Detector struct {
	registry *Registry
	ignorer  *ignore.Evaluator

	// minPercent is the repository share below which a language is
	// reported but flagged BelowThreshold.
	minPercent float64
}

// NewDetector creates a detector over the given registry and ignore
// evaluator.
func NewDetector(registry *Registry, ignorer *ignore.Evaluator, minPercent float64) *Detector {
	return &Detector{
		registry:   registry,
		ignorer:    ignorer,
		minPercent: minPercent,
	}
}

// Detection is the result of one repository scan.
type Detection struct {
	// Languages are the detected languages, largest first.
	Languages []Language

	// TotalSize is the byte count across all detected source files.
	TotalSize int64

	// GoModulePath is the module path from go.mod when the repository
	// contains a Go module; used for qualified-name normalization.
	GoModulePath string
}

// Active returns the languages large enough to get an LSP client.
func (d Detection) Active() []Language {
	var active []Language
	for _, l := range d.Languages {
		if !l.BelowThreshold {
			active = append(active, l)
		}
	}
	return active
}

// Detect walks the repository, attributing file sizes to registered
// languages by suffix and honoring the ignore evaluator.
//
// Inputs:
//
//	root - Repository root directory
//
// Outputs:
//
//	Detection - Per-language sizes, percentages, and launch configs
//	error - Non-nil only if the root itself is unreadable; unreadable
//	        individual files are skipped
func (d *Detector) Detect(root string) (Detection, error) {
	type stats struct {
		size  int64
		files int
	}
	perLanguage := make(map[string]*stats)
	var total int64

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.ignorer.Ignored(rel) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		language, ok := d.registry.LanguageForSuffix(filepath.Ext(path))
		if !ok {
			return nil
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}

		s, ok := perLanguage[language]
		if !ok {
			s = &stats{}
			perLanguage[language] = s
		}
		s.size += info.Size()
		s.files++
		total += info.Size()
		return nil
	})
	if err != nil {
		return Detection{}, err
	}

	detection := Detection{TotalSize: total}
	for name, s := range perLanguage {
		cfg, _ := d.registry.Get(name)
		pct := 0.0
		if total > 0 {
			pct = float64(s.size) / float64(total) * 100
		}
		detection.Languages = append(detection.Languages, Language{
			Name:           name,
			Size:           s.size,
			Percentage:     pct,
			Suffixes:       cfg.Suffixes,
			FileCount:      s.files,
			BelowThreshold: pct < d.minPercent,
			Config:         cfg,
		})
	}
	sort.Slice(detection.Languages, func(i, j int) bool {
		if detection.Languages[i].Size != detection.Languages[j].Size {
			return detection.Languages[i].Size > detection.Languages[j].Size
		}
		return detection.Languages[i].Name < detection.Languages[j].Name
	})

	detection.GoModulePath = goModulePath(root)

	slog.Debug("language detection complete",
		slog.Int("languages", len(detection.Languages)),
		slog.Int64("total_bytes", total),
	)
	return detection, nil
}

// SourceFiles lists the repo-relative source files for one language,
// honoring the ignore evaluator. The engine feeds this list to the
// language's client.
func (d *Detector) SourceFiles(root string, language Language) ([]string, error) {
	suffixes := make(map[string]bool, len(language.Suffixes))
	for _, s := range language.Suffixes {
		suffixes[s] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.ignorer.Ignored(rel) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() && suffixes[filepath.Ext(path)] {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// goModulePath parses go.mod at the root and returns its module path,
// or "" when absent or malformed.
func goModulePath(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil || f.Module == nil {
		return ""
	}
	return f.Module.Mod.Path
}
