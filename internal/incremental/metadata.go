// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package incremental drives iterative re-analysis: it loads the prior
// run's metadata, diffs against the current commit, classifies what
// changed, applies per-component updates, and persists metadata for the
// commit it actually analyzed.
package incremental

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataFile is the durable cross-run state file name.
const MetadataFile = "iterative_metadata.json"

// LegacyVersionFile is the older state file, consulted only when
// MetadataFile is absent. It carries a commit hash but no per-file
// hashes, so every file must be treated as modified.
const LegacyVersionFile = "codeboarding_version.json"

// ErrNoMetadata indicates no prior run state exists at all.
var ErrNoMetadata = errors.New("no analysis metadata found")

// Metadata is the persisted state of one completed analysis run.
type Metadata struct {
	// CommitHash is the commit the analysis covered.
	CommitHash string `json:"commit_hash"`

	// AnalysisTimestamp is the run completion time, ISO-8601.
	AnalysisTimestamp string `json:"analysis_timestamp"`

	// FileContentHashes maps repo-relative path to the sha256 hex of
	// its normalized content at CommitHash.
	FileContentHashes map[string]string `json:"file_content_hashes"`

	// Legacy reports that this metadata was reconstructed from the
	// old version file and carries no file hashes.
	Legacy bool `json:"-"`
}

// legacyVersion is the shape of LegacyVersionFile.
type legacyVersion struct {
	CommitHash string `json:"commit_hash"`
	Version    string `json:"version"`
}

// LoadMetadata reads the prior run's metadata from dir.
//
// Description:
//
//	Prefers MetadataFile. Falls back to LegacyVersionFile when the
//	metadata file is absent; the result then has Legacy set and no
//	file hashes. Malformed content is reported as ErrNoMetadata so
//	callers degrade to a full run instead of failing.
//
// Outputs:
//
//	*Metadata - The prior run state.
//	error - ErrNoMetadata when neither file exists or parses.
func LoadMetadata(dir string) (*Metadata, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err == nil {
		var meta Metadata
		if jsonErr := json.Unmarshal(raw, &meta); jsonErr != nil || meta.CommitHash == "" {
			return nil, fmt.Errorf("%w: %s is malformed", ErrNoMetadata, MetadataFile)
		}
		return &meta, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", MetadataFile, err)
	}

	raw, err = os.ReadFile(filepath.Join(dir, LegacyVersionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoMetadata
		}
		return nil, fmt.Errorf("read %s: %w", LegacyVersionFile, err)
	}
	var legacy legacyVersion
	if jsonErr := json.Unmarshal(raw, &legacy); jsonErr != nil || legacy.CommitHash == "" {
		return nil, fmt.Errorf("%w: %s is malformed", ErrNoMetadata, LegacyVersionFile)
	}
	return &Metadata{CommitHash: legacy.CommitHash, Legacy: true}, nil
}

// SaveMetadata writes metadata atomically: a temp file in the same
// directory, fsynced, then renamed over the target. A crash mid-write
// never leaves a truncated metadata file behind.
func SaveMetadata(dir string, meta *Metadata) error {
	if meta.CommitHash == "" {
		return errors.New("metadata commit hash must not be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	payload = append(payload, '\n')

	tmp, err := os.CreateTemp(dir, MetadataFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, MetadataFile)); err != nil {
		return fmt.Errorf("replace metadata file: %w", err)
	}
	return nil
}

// NewMetadata builds run metadata stamped with the current UTC time.
func NewMetadata(commitHash string, hashes map[string]string) *Metadata {
	return &Metadata{
		CommitHash:        commitHash,
		AnalysisTimestamp: time.Now().UTC().Format(time.RFC3339),
		FileContentHashes: hashes,
	}
}
