// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package change

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/codescope/internal/gitdiff"
	"github.com/AleutianAI/codescope/internal/symbols"
)

// Type is the change classification bucket.
type Type string

const (
	// TypeCosmetic covers formatting, comments, and whitespace-only
	// edits. No re-analysis needed.
	TypeCosmetic Type = "cosmetic"

	// TypeInternal covers body-only edits with unchanged signatures.
	// Only descriptions need refreshing.
	TypeInternal Type = "internal"

	// TypeStructural covers API-visible edits: added, removed, or
	// re-signed symbols. Full component re-analysis.
	TypeStructural Type = "structural"

	// TypeNewFile covers files with no prior state.
	TypeNewFile Type = "new_file"

	// TypeDeleted covers removed files.
	TypeDeleted Type = "deleted"
)

// rank orders classifications for per-component aggregation.
func (t Type) rank() int {
	switch t {
	case TypeStructural:
		return 3
	case TypeInternal:
		return 2
	case TypeCosmetic:
		return 1
	default:
		return 0
	}
}

// ClassifiedChange is the classification of one changed file.
type ClassifiedChange struct {
	// FilePath is the repo-relative path (post-rename for moves).
	FilePath string `json:"file_path"`

	// ChangeType is the classification bucket.
	ChangeType Type `json:"change_type"`

	// AffectedComponents are the components owning this file.
	AffectedComponents []string `json:"affected_components,omitempty"`

	// SymbolDiff is the symbol-level diff when the differ ran.
	SymbolDiff *symbols.SymbolDiff `json:"symbol_diff,omitempty"`

	// OldPath is the pre-rename path for moves.
	OldPath string `json:"old_path,omitempty"`

	// IsMove reports whether this change is a recovered rename.
	IsMove bool `json:"is_move"`
}

// ContentReader supplies file content for both sides of the comparison.
type ContentReader interface {
	// Current returns a file's content in the commit being analyzed.
	Current(path string) (string, error)

	// Previous returns a file's content at the previously analyzed
	// commit.
	Previous(path string) (string, error)
}

// Classifier buckets changed files using content hashing plus the
// symbol differ. It always operates on the fixed hash snapshot taken at
// the prior run, never a live filesystem scan.
type Classifier struct {
	prevHashes map[string]string
	owners     map[string][]string
	reader     ContentReader
}

// NewClassifier creates a classifier.
//
// Inputs:
//
//	prevHashes - Prior run's normalized content hash per path.
//	owners - File path to owning-component names.
//	reader - Content access for both commits.
func NewClassifier(prevHashes map[string]string, owners map[string][]string, reader ContentReader) *Classifier {
	return &Classifier{
		prevHashes: prevHashes,
		owners:     owners,
		reader:     reader,
	}
}

// Classify buckets every change in the git diff.
//
// Description:
//
//	Runs move detection over the added/deleted lists first (git's own
//	rename detection output is honored as-is), then classifies each
//	surviving file. Modified files take the hash fast path: content
//	whose normalized hash equals the prior hash is cosmetic without
//	running the differ.
func (c *Classifier) Classify(changes *gitdiff.Changes) ([]ClassifiedChange, error) {
	newHashes := make(map[string]string, len(changes.Added))
	for _, path := range changes.Added {
		content, err := c.reader.Current(path)
		if err != nil {
			continue
		}
		newHashes[path] = Hash(content)
	}
	moved := DetectMoves(changes.Deleted, changes.Added, c.prevHashes, newHashes)

	var out []ClassifiedChange

	for _, rename := range changes.Renamed {
		cc, err := c.classifyMove(rename.OldPath, rename.NewPath)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	for _, move := range moved.Moves {
		cc, err := c.classifyMove(move.OldPath, move.NewPath)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}

	for _, path := range changes.Modified {
		cc, err := c.classifyModified(path)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}

	for _, path := range moved.Added {
		out = append(out, ClassifiedChange{
			FilePath:   path,
			ChangeType: TypeNewFile,
			// Unassigned: component classification happens downstream.
		})
	}

	for _, path := range moved.Deleted {
		out = append(out, ClassifiedChange{
			FilePath:           path,
			ChangeType:         TypeDeleted,
			AffectedComponents: c.owners[path],
		})
	}

	return out, nil
}

// classifyModified handles an in-place content change.
func (c *Classifier) classifyModified(path string) (ClassifiedChange, error) {
	current, err := c.reader.Current(path)
	if err != nil {
		return ClassifiedChange{}, fmt.Errorf("read current %s: %w", path, err)
	}

	cc := ClassifiedChange{
		FilePath:           path,
		AffectedComponents: c.owners[path],
	}

	// Fast path: normalized hash unchanged means the edit was line
	// endings, trailing whitespace, or blank lines. The differ never runs.
	if prev, known := c.prevHashes[path]; known && Hash(current) == prev {
		cc.ChangeType = TypeCosmetic
		return cc, nil
	}

	previous, err := c.reader.Previous(path)
	if err != nil {
		// No usable prior content: force re-analysis rather than guess.
		slog.Warn("prior content unavailable, classifying structural",
			slog.String("file", path),
			slog.String("error", err.Error()))
		cc.ChangeType = TypeStructural
		return cc, nil
	}

	diff := symbols.Diff(path, previous, current)
	cc.SymbolDiff = &diff
	cc.ChangeType = classifyDiff(diff)
	return cc, nil
}

// classifyMove handles a rename, recovered or git-reported.
func (c *Classifier) classifyMove(oldPath, newPath string) (ClassifiedChange, error) {
	current, err := c.reader.Current(newPath)
	if err != nil {
		return ClassifiedChange{}, fmt.Errorf("read current %s: %w", newPath, err)
	}

	cc := ClassifiedChange{
		FilePath:           newPath,
		OldPath:            oldPath,
		IsMove:             true,
		AffectedComponents: c.owners[oldPath],
	}

	// Identical content before and after: component reassignment only.
	if prev, known := c.prevHashes[oldPath]; known && Hash(current) == prev {
		cc.ChangeType = TypeCosmetic
		return cc, nil
	}

	previous, err := c.reader.Previous(oldPath)
	if err != nil {
		slog.Warn("pre-rename content unavailable, classifying structural",
			slog.String("file", oldPath),
			slog.String("error", err.Error()))
		cc.ChangeType = TypeStructural
		return cc, nil
	}

	if Hash(previous) == Hash(current) {
		cc.ChangeType = TypeCosmetic
		return cc, nil
	}

	diff := symbols.Diff(newPath, previous, current)
	cc.SymbolDiff = &diff
	cc.ChangeType = classifyDiff(diff)
	return cc, nil
}

// classifyDiff maps a symbol diff to a bucket. API changes beat
// implementation-only changes beat nothing at all.
func classifyDiff(diff symbols.SymbolDiff) Type {
	switch {
	case diff.HasAPIChanges():
		return TypeStructural
	case len(diff.ImplementationOnly) > 0:
		return TypeInternal
	default:
		return TypeCosmetic
	}
}

// Aggregate unions classifications per component. A component with both
// internal- and structural-classified files comes out structural.
// New files have no component yet and deleted files are handled per
// file, so only cosmetic/internal/structural participate.
func Aggregate(changes []ClassifiedChange) map[string]Type {
	out := make(map[string]Type)
	for _, cc := range changes {
		if cc.ChangeType.rank() == 0 {
			continue
		}
		for _, component := range cc.AffectedComponents {
			if cc.ChangeType.rank() > out[component].rank() {
				out[component] = cc.ChangeType
			}
		}
	}
	return out
}

// Summary counts changes per bucket, for logging.
func Summary(changes []ClassifiedChange) string {
	counts := make(map[Type]int)
	for _, cc := range changes {
		counts[cc.ChangeType]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	s := ""
	for i, t := range types {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%d", t, counts[Type(t)])
	}
	return s
}
