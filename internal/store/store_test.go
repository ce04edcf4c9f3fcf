// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codescope/internal/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	snap := &LanguageSnapshot{
		Language: "python",
		Files:    []string{"src/api.py", "src/util.py"},
		Nodes: []graph.Node{
			{QualifiedName: "src.api.handler", FilePath: "src/api.py", LineStart: 3, LineEnd: 9},
		},
		Edges: []graph.Edge{
			{Source: "src.api.handler", Destination: "<dynamic>", CallSiteLine: 5},
		},
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err := s.LoadSnapshot(ctx, "python")
	require.NoError(t, err)
	assert.Equal(t, "python", got.Language)
	assert.Equal(t, snap.Files, got.Files)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "src.api.handler", got.Nodes[0].QualifiedName)
	assert.Equal(t, snap.Edges, got.Edges)
}

func TestLoadMissingSnapshot(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LoadSnapshot(t.Context(), "java")
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSaveOverwritesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.SaveSnapshot(ctx, &LanguageSnapshot{Language: "go", Files: []string{"a.go"}}))
	require.NoError(t, s.SaveSnapshot(ctx, &LanguageSnapshot{Language: "go", Files: []string{"a.go", "b.go"}}))

	got, err := s.LoadSnapshot(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, got.Files)
}

func TestLanguagesAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	for _, lang := range []string{"typescript", "go", "python"} {
		require.NoError(t, s.SaveSnapshot(ctx, &LanguageSnapshot{Language: lang}))
	}

	langs, err := s.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "python", "typescript"}, langs)

	require.NoError(t, s.DeleteSnapshot(ctx, "go"))
	langs, err = s.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "typescript"}, langs)

	// Deleting a missing snapshot is not an error.
	assert.NoError(t, s.DeleteSnapshot(ctx, "go"))
}

func TestSaveRejectsEmptyLanguage(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveSnapshot(t.Context(), &LanguageSnapshot{}))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	agg := graph.NewStore()

	cg := graph.NewCallGraph()
	cg.AddNode(graph.Node{QualifiedName: "pkg.mod.f", FilePath: "pkg/mod.py", LineStart: 1, LineEnd: 4})
	cg.AddNode(graph.Node{QualifiedName: "pkg.mod.g", FilePath: "pkg/mod.py", LineStart: 6, LineEnd: 9})
	cg.AddEdge(graph.Edge{Source: "pkg.mod.f", Destination: "pkg.mod.g", CallSiteLine: 2})

	h := graph.NewClassHierarchy()
	h.Declare("pkg.mod.C", "pkg/mod.py", 11, 20)

	deps := graph.NewPackageDependencies()
	deps.AddImport("pkg.mod", "pkg.util")

	agg.AddCFG("python", cg)
	agg.AddClassHierarchy("python", h)
	agg.AddPackageDependencies("python", deps)
	agg.AddReferences("python", map[string][]graph.Reference{
		"pkg.mod.f": {{FilePath: "pkg/other.py", Line: 3}},
	})
	agg.AddSourceFiles("python", []string{"pkg/mod.py", "pkg/other.py"})

	snap, err := SnapshotFrom(agg, "python")
	require.NoError(t, err)

	restored := graph.NewStore()
	snap.Restore(restored)

	cg2, err := restored.GetCFG("python")
	require.NoError(t, err)
	assert.Equal(t, cg.Render(), cg2.Render())

	h2, err := restored.GetClassHierarchy("python")
	require.NoError(t, err)
	assert.Contains(t, h2, "pkg.mod.C")

	files, err := restored.GetSourceFiles("python")
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/mod.py", "pkg/other.py"}, files)
}

func TestSnapshotFromUnknownLanguage(t *testing.T) {
	_, err := SnapshotFrom(graph.NewStore(), "java")
	require.ErrorIs(t, err, graph.ErrDataNotFound)
}
