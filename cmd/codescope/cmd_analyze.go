// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codescope/internal/engine"
	"github.com/AleutianAI/codescope/internal/gitdiff"
	"github.com/AleutianAI/codescope/internal/graph"
	"github.com/AleutianAI/codescope/internal/incremental"
	"github.com/AleutianAI/codescope/internal/store"
)

func runAnalyze(cmd *cobra.Command, args []string) {
	repo := repoAbs()
	ctx := cmd.Context()

	snapshots, err := store.Open(store.DefaultConfig(storeDir(repo)))
	if err != nil {
		fatalf("open snapshot store: %v", err)
	}
	defer snapshots.Close()

	eng := engine.New(cfg, repo, snapshots)
	report, err := eng.RunFull(ctx)
	if err != nil {
		fatalf("full analysis: %v", err)
	}

	for _, rep := range report.Languages {
		if rep.Err != nil {
			fmt.Printf("%-12s FAILED: %v\n", rep.Language, rep.Err)
			continue
		}
		line := fmt.Sprintf("%-12s %d files (%d skipped), %d nodes, %d edges",
			rep.Language, rep.Files, rep.FailedFiles, rep.Nodes, rep.Edges)
		if rep.DiagnosticErrors > 0 {
			line += fmt.Sprintf(", %d diagnostic errors", rep.DiagnosticErrors)
		}
		fmt.Println(line)
	}
	if len(report.Languages) == 0 {
		fmt.Println("no languages detected above threshold")
		return
	}
	if printGraphFlag {
		for _, rep := range report.Languages {
			if rep.Err == nil {
				printCallGraph(eng.Store(), rep.Language)
			}
		}
	}

	// Run metadata makes the next incremental run possible. A repo
	// without git history still analyzes fine; it just cannot go
	// incremental later.
	git := gitdiff.NewClient(repo)
	head, err := git.CommitHash(ctx, "HEAD")
	if err != nil {
		if errors.Is(err, gitdiff.ErrNotARepository) {
			fmt.Println("not a git repository: skipping run metadata")
			return
		}
		fatalf("resolve HEAD: %v", err)
	}
	if err := incremental.SaveMetadata(metadataDir(repo), incremental.NewMetadata(head, report.FileHashes)); err != nil {
		fatalf("persist run metadata: %v", err)
	}
	fmt.Printf("metadata persisted for commit %.12s\n", head)
}

// printCallGraph renders one language's call graph to stdout.
func printCallGraph(agg *graph.Store, language string) {
	cg, err := agg.GetCFG(language)
	if err != nil {
		return
	}
	fmt.Println(cg.Render())
}
