// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package incremental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/codescope/internal/change"
	"github.com/AleutianAI/codescope/internal/gitdiff"
)

// DefaultRewriteThreshold is the changed-to-known file ratio above
// which incremental analysis is abandoned for a full run.
const DefaultRewriteThreshold = 0.5

// Mode is the outcome of an orchestrator run.
type Mode string

const (
	// ModeNoChanges means the repository is at the already-analyzed
	// commit. Nothing ran, metadata was not rewritten.
	ModeNoChanges Mode = "no_changes"

	// ModeFull means incremental analysis was abandoned: missing or
	// legacy metadata, or the change ratio exceeded the threshold.
	// The caller must run a full analysis.
	ModeFull Mode = "full"

	// ModeIncremental means per-file classification ran and component
	// updates were applied.
	ModeIncremental Mode = "incremental"
)

// ComponentUpdater applies per-component actions chosen by the
// classifier. Implementations wrap the aggregation pipeline and the
// description layer.
type ComponentUpdater interface {
	// RefreshDescription performs the lightweight description-only
	// update for a component with internal changes.
	RefreshDescription(ctx context.Context, component string) error

	// Reanalyze re-runs full analysis for a component with structural
	// changes.
	Reanalyze(ctx context.Context, component string) error

	// RemoveFile drops a deleted file from a component and returns
	// how many files the component still owns.
	RemoveFile(ctx context.Context, component, filePath string) (remaining int, err error)
}

// Result summarizes one orchestrator run.
type Result struct {
	// Mode is the run outcome.
	Mode Mode

	// FallbackReason explains a ModeFull outcome.
	FallbackReason string

	// PreviousCommit and CurrentCommit bound the analyzed diff.
	PreviousCommit string
	CurrentCommit  string

	// Changes holds the per-file classifications (incremental mode).
	Changes []change.ClassifiedChange

	// LineStats maps a classified file path to its diff line counts,
	// for run summaries. Moves are omitted; the raw diff sees only the
	// new path and would report the whole file as added.
	LineStats map[string]gitdiff.HunkStats

	// Components maps component name to its aggregated classification.
	Components map[string]change.Type

	// NewFiles lists added files awaiting component assignment.
	NewFiles []string

	// StaleComponents lists components whose update failed; they keep
	// their previous state.
	StaleComponents []string

	// EmptyComponents lists components left with zero files after
	// deletions. They are flagged, never auto-deleted.
	EmptyComponents []string
}

// Config controls one orchestrator instance.
type Config struct {
	// RepoPath is the repository root.
	RepoPath string

	// MetadataDir holds iterative_metadata.json. Usually the output
	// directory of the previous analysis.
	MetadataDir string

	// RewriteThreshold overrides DefaultRewriteThreshold when > 0.
	RewriteThreshold float64
}

// Orchestrator coordinates one incremental run. Not safe for
// concurrent runs against the same metadata directory; callers must
// serialize.
type Orchestrator struct {
	cfg     Config
	git     *gitdiff.Client
	updater ComponentUpdater

	// owners maps repo-relative file path to owning components, from
	// the previous run's analysis state.
	owners map[string][]string
}

// NewOrchestrator creates an orchestrator.
//
// Inputs:
//
//	cfg - Paths and threshold.
//	git - Git diff provider rooted at cfg.RepoPath.
//	updater - Component update actions.
//	owners - File path to owning-component names from the prior run.
func NewOrchestrator(cfg Config, git *gitdiff.Client, updater ComponentUpdater, owners map[string][]string) *Orchestrator {
	if cfg.RewriteThreshold <= 0 {
		cfg.RewriteThreshold = DefaultRewriteThreshold
	}
	return &Orchestrator{cfg: cfg, git: git, updater: updater, owners: owners}
}

// commitReader adapts git content access to the classifier's
// ContentReader, pinning both sides to fixed commits so classification
// never races a live working tree.
type commitReader struct {
	ctx      context.Context
	git      *gitdiff.Client
	previous string
	current  string
}

func (r commitReader) Current(path string) (string, error) {
	return r.git.Show(r.ctx, r.current, path)
}

func (r commitReader) Previous(path string) (string, error) {
	return r.git.Show(r.ctx, r.previous, path)
}

// Run executes the state machine: load previous metadata, diff against
// the current commit, then no-op, full fallback, or classify and apply
// targeted updates, persisting metadata for the analyzed commit.
//
// Description:
//
//	A per-component update failure is caught and logged; the component
//	stays at its previous state and the run still completes and
//	persists. Only missing/legacy metadata and the rewrite threshold
//	degrade the whole run to ModeFull.
//
// Outputs:
//
//	*Result - Run outcome and classifications.
//	error - Non-nil only for environmental failures (git unusable,
//	metadata unwritable), never for per-component failures.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	current, err := o.git.CommitHash(ctx, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolve current commit: %w", err)
	}

	meta, err := LoadMetadata(o.cfg.MetadataDir)
	if err != nil {
		if errors.Is(err, ErrNoMetadata) {
			slog.Info("no usable prior metadata, full analysis required",
				slog.String("reason", err.Error()))
			return &Result{
				Mode:           ModeFull,
				FallbackReason: "prior metadata missing or malformed",
				CurrentCommit:  current,
			}, nil
		}
		return nil, err
	}

	if meta.CommitHash == current {
		slog.Info("repository unchanged since last analysis",
			slog.String("commit", current))
		return &Result{
			Mode:           ModeNoChanges,
			PreviousCommit: meta.CommitHash,
			CurrentCommit:  current,
		}, nil
	}

	if meta.Legacy {
		// The legacy version file has no per-file hashes, so every
		// file counts as modified. Classification cannot help here.
		return &Result{
			Mode:           ModeFull,
			FallbackReason: "legacy version file carries no file hashes",
			PreviousCommit: meta.CommitHash,
			CurrentCommit:  current,
		}, nil
	}

	changes, err := o.git.ChangedFiles(ctx, meta.CommitHash, current)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", meta.CommitHash, current, err)
	}

	if changes.Total() == 0 {
		// Commit moved but nothing we track changed. Re-stamp the
		// metadata so the next run short-circuits on the commit hash.
		if err := SaveMetadata(o.cfg.MetadataDir, NewMetadata(current, meta.FileContentHashes)); err != nil {
			return nil, err
		}
		return &Result{
			Mode:           ModeNoChanges,
			PreviousCommit: meta.CommitHash,
			CurrentCommit:  current,
		}, nil
	}

	known := len(meta.FileContentHashes)
	if known > 0 && float64(changes.Total()) > o.cfg.RewriteThreshold*float64(known) {
		slog.Info("change ratio exceeds rewrite threshold, falling back to full analysis",
			slog.Int("changed", changes.Total()),
			slog.Int("known", known),
			slog.Float64("threshold", o.cfg.RewriteThreshold))
		return &Result{
			Mode:           ModeFull,
			FallbackReason: fmt.Sprintf("%d of %d known files changed", changes.Total(), known),
			PreviousCommit: meta.CommitHash,
			CurrentCommit:  current,
		}, nil
	}

	reader := commitReader{ctx: ctx, git: o.git, previous: meta.CommitHash, current: current}
	classifier := change.NewClassifier(meta.FileContentHashes, o.owners, reader)
	classified, err := classifier.Classify(changes)
	if err != nil {
		return nil, fmt.Errorf("classify changes: %w", err)
	}

	result := &Result{
		Mode:           ModeIncremental,
		PreviousCommit: meta.CommitHash,
		CurrentCommit:  current,
		Changes:        classified,
		Components:     change.Aggregate(classified),
		LineStats:      o.lineStats(ctx, meta.CommitHash, current, classified),
	}
	o.applyUpdates(ctx, result)

	hashes, err := o.nextHashes(reader, meta.FileContentHashes, classified)
	if err != nil {
		return nil, err
	}
	if err := SaveMetadata(o.cfg.MetadataDir, NewMetadata(current, hashes)); err != nil {
		return nil, err
	}

	slog.Info("incremental analysis complete",
		slog.String("commit", current),
		slog.String("changes", change.Summary(classified)))
	return result, nil
}

// applyUpdates runs per-component actions. Failures mark the component
// stale and the loop continues.
func (o *Orchestrator) applyUpdates(ctx context.Context, result *Result) {
	components := make([]string, 0, len(result.Components))
	for name := range result.Components {
		components = append(components, name)
	}
	sort.Strings(components)

	for _, name := range components {
		var err error
		switch result.Components[name] {
		case change.TypeStructural:
			err = o.updater.Reanalyze(ctx, name)
		case change.TypeInternal:
			err = o.updater.RefreshDescription(ctx, name)
		default:
			// Cosmetic: nothing to do.
		}
		if err != nil {
			slog.Error("component update failed, leaving previous state",
				slog.String("component", name),
				slog.String("error", err.Error()))
			result.StaleComponents = append(result.StaleComponents, name)
		}
	}

	for _, cc := range result.Changes {
		switch cc.ChangeType {
		case change.TypeNewFile:
			result.NewFiles = append(result.NewFiles, cc.FilePath)
		case change.TypeDeleted:
			for _, component := range cc.AffectedComponents {
				remaining, err := o.updater.RemoveFile(ctx, component, cc.FilePath)
				if err != nil {
					slog.Error("file removal failed, leaving previous state",
						slog.String("component", component),
						slog.String("file", cc.FilePath),
						slog.String("error", err.Error()))
					result.StaleComponents = append(result.StaleComponents, component)
					continue
				}
				if remaining == 0 {
					result.EmptyComponents = append(result.EmptyComponents, component)
				}
			}
		}
	}
	sort.Strings(result.NewFiles)
	sort.Strings(result.EmptyComponents)
}

// lineStats gathers per-file diff line counts for the run summary. A
// file whose stats cannot be read is skipped, never fatal.
func (o *Orchestrator) lineStats(ctx context.Context, oldRef, newRef string, classified []change.ClassifiedChange) map[string]gitdiff.HunkStats {
	stats := make(map[string]gitdiff.HunkStats, len(classified))
	for _, cc := range classified {
		if cc.IsMove {
			continue
		}
		st, err := o.git.Stats(ctx, oldRef, newRef, cc.FilePath)
		if err != nil {
			slog.Debug("diff stats unavailable",
				slog.String("file", cc.FilePath),
				slog.String("error", err.Error()))
			continue
		}
		stats[cc.FilePath] = *st
	}
	return stats
}

// nextHashes rolls the prior hash snapshot forward: changed and added
// files re-hash at the current commit, deleted and moved-away paths
// drop out.
func (o *Orchestrator) nextHashes(reader change.ContentReader, prev map[string]string, classified []change.ClassifiedChange) (map[string]string, error) {
	hashes := make(map[string]string, len(prev))
	for path, h := range prev {
		hashes[path] = h
	}

	for _, cc := range classified {
		if cc.IsMove {
			delete(hashes, cc.OldPath)
		}
		if cc.ChangeType == change.TypeDeleted {
			delete(hashes, cc.FilePath)
			continue
		}
		content, err := reader.Current(cc.FilePath)
		if err != nil {
			return nil, fmt.Errorf("hash %s at current commit: %w", cc.FilePath, err)
		}
		hashes[cc.FilePath] = change.Hash(content)
	}
	return hashes, nil
}
