// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codescope/internal/engine"
	"github.com/AleutianAI/codescope/internal/gitdiff"
	"github.com/AleutianAI/codescope/internal/incremental"
	"github.com/AleutianAI/codescope/internal/store"
)

func runIncremental(cmd *cobra.Command, args []string) {
	if err := incrementalRun(cmd.Context()); err != nil {
		fatalf("incremental analysis: %v", err)
	}
}

// incrementalRun executes one incremental pass, degrading to a full
// run when the orchestrator asks for one. Shared with watch mode.
func incrementalRun(ctx context.Context) error {
	repo := repoAbs()

	snapshots, err := store.Open(store.DefaultConfig(storeDir(repo)))
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer snapshots.Close()

	eng := engine.New(cfg, repo, snapshots)
	if err := restoreSnapshots(ctx, snapshots, eng); err != nil {
		return err
	}
	updater := engine.NewUpdater(eng)

	orch := incremental.NewOrchestrator(incremental.Config{
		RepoPath:         repo,
		MetadataDir:      metadataDir(repo),
		RewriteThreshold: cfg.RewriteThreshold,
	}, gitdiff.NewClient(repo), updater, updater.Owners())

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	switch result.Mode {
	case incremental.ModeNoChanges:
		fmt.Println("no changes since last analysis")
		return nil

	case incremental.ModeFull:
		fmt.Printf("falling back to full analysis: %s\n", result.FallbackReason)
		return fullRunForIncremental(ctx, eng, repo, result.CurrentCommit)

	default:
		fmt.Printf("incremental: %d files classified across %d components\n",
			len(result.Changes), len(result.Components))
		for _, ch := range result.Changes {
			line := fmt.Sprintf("  %-12s %s", ch.ChangeType, ch.FilePath)
			if ch.IsMove {
				line += fmt.Sprintf(" (from %s)", ch.OldPath)
			}
			if st, ok := result.LineStats[ch.FilePath]; ok {
				line += fmt.Sprintf(" (+%d/-%d)", st.Added, st.Deleted)
			}
			fmt.Println(line)
		}
		for _, component := range result.StaleComponents {
			fmt.Printf("  stale (update failed): %s\n", component)
		}
		for _, component := range result.EmptyComponents {
			fmt.Printf("  empty after deletions: %s\n", component)
		}
		for _, path := range result.NewFiles {
			fmt.Printf("  new file pending assignment: %s\n", path)
		}
		for _, component := range updater.PendingDescriptions() {
			fmt.Printf("  description refresh queued: %s\n", component)
		}
		return nil
	}
}

// restoreSnapshots rebuilds the in-memory model from persisted
// per-language snapshots so ownership maps reflect the prior run.
func restoreSnapshots(ctx context.Context, snapshots *store.Store, eng *engine.Engine) error {
	languages, err := snapshots.Languages(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	for _, language := range languages {
		snap, err := snapshots.LoadSnapshot(ctx, language)
		if err != nil {
			if errors.Is(err, store.ErrSnapshotNotFound) {
				continue
			}
			return fmt.Errorf("load %s snapshot: %w", language, err)
		}
		snap.Restore(eng.Store())
		slog.Debug("snapshot restored",
			slog.String("language", language),
			slog.Int("files", len(snap.Files)))
	}
	return nil
}

// fullRunForIncremental runs a full analysis and persists metadata for
// the commit the orchestrator resolved.
func fullRunForIncremental(ctx context.Context, eng *engine.Engine, repo, commit string) error {
	report, err := eng.RunFull(ctx)
	if err != nil {
		return err
	}
	for _, rep := range report.Languages {
		if rep.Err != nil {
			fmt.Printf("%-12s FAILED: %v\n", rep.Language, rep.Err)
		}
	}
	if commit == "" {
		return nil
	}
	return incremental.SaveMetadata(metadataDir(repo), incremental.NewMetadata(commit, report.FileHashes))
}
