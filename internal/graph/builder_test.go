// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"testing"

	"github.com/AleutianAI/codescope/internal/lsp"
)

func pos(line int) lsp.Position { return lsp.Position{Line: line} }

func rng(start, end int) lsp.Range {
	return lsp.Range{Start: pos(start), End: pos(end)}
}

func TestBuilderAddFile(t *testing.T) {
	root := "/repo"
	b := NewBuilder(root, "python")

	item := func(name, relPath string, start, end int) lsp.CallHierarchyItem {
		return lsp.CallHierarchyItem{
			Name:           name,
			Kind:           lsp.SymbolKindFunction,
			URI:            lsp.PathToURI(root + "/" + relPath),
			Range:          rng(start, end),
			SelectionRange: rng(start, start),
		}
	}

	b.AddFile(lsp.FileAnalysis{
		Path: "src/service.py",
		Symbols: []lsp.DocumentSymbol{
			{
				Name:           "Service",
				Kind:           lsp.SymbolKindClass,
				Range:          rng(0, 20),
				SelectionRange: rng(0, 0),
				Children: []lsp.DocumentSymbol{
					{
						Name:           "handle",
						Kind:           lsp.SymbolKindMethod,
						Range:          rng(2, 10),
						SelectionRange: rng(2, 2),
					},
				},
			},
		},
		Calls: []lsp.CallEdge{
			{
				From:       item("Service.handle", "src/service.py", 2, 10),
				To:         item("helper", "src/util.py", 0, 5),
				FromRanges: []lsp.Range{rng(4, 4)},
			},
			{
				// Callee outside the repo degrades to dynamic.
				From: item("Service.handle", "src/service.py", 2, 10),
				To: lsp.CallHierarchyItem{
					Name:           "loads",
					Kind:           lsp.SymbolKindFunction,
					URI:            lsp.PathToURI("/usr/lib/python/json.py"),
					Range:          rng(0, 5),
					SelectionRange: rng(0, 0),
				},
				FromRanges: []lsp.Range{rng(6, 6)},
			},
		},
		References: map[string][]lsp.Location{
			"Service.handle": {
				{URI: lsp.PathToURI(root + "/src/api.py"), Range: rng(7, 7)},
			},
		},
	})

	g := b.Graph()

	if _, ok := g.Nodes["src.service.Service.handle"]; !ok {
		t.Error("method node missing")
	}
	if _, ok := g.Nodes["src.util.helper"]; !ok {
		t.Error("callee node missing")
	}

	var toHelper, toDynamic bool
	for _, e := range g.Edges {
		switch e.Destination {
		case "src.util.helper":
			toHelper = e.CallSiteLine == 5
		case DynamicNode:
			toDynamic = true
		}
	}
	if !toHelper {
		t.Error("edge to src.util.helper with call site line 5 missing")
	}
	if !toDynamic {
		t.Error("out-of-repo callee did not degrade to dynamic node")
	}

	entry, ok := b.Hierarchy()["src.service.Service"]
	if !ok {
		t.Fatal("class hierarchy entry missing")
	}
	if entry.FilePath != "src/service.py" || entry.LineStart != 1 || entry.LineEnd != 21 {
		t.Errorf("entry = %+v", entry)
	}

	store := NewStore()
	b.Publish(store)
	refs, err := store.GetReferences("python")
	if err != nil {
		t.Fatalf("GetReferences: %v", err)
	}
	got := refs["src.service.Service.handle"]
	if len(got) != 1 || got[0].FilePath != "src/api.py" || got[0].Line != 8 {
		t.Errorf("references = %+v", got)
	}
	files, err := store.GetSourceFiles("python")
	if err != nil || len(files) != 1 || files[0] != "src/service.py" {
		t.Errorf("source files = %v (err %v)", files, err)
	}
}

func TestBuilderAnnotateCallSite(t *testing.T) {
	root := "/repo"
	b := NewBuilder(root, "python")

	item := func(name, relPath string, start, end int) lsp.CallHierarchyItem {
		return lsp.CallHierarchyItem{
			Name:           name,
			Kind:           lsp.SymbolKindFunction,
			URI:            lsp.PathToURI(root + "/" + relPath),
			Range:          rng(start, end),
			SelectionRange: rng(start, start),
		}
	}

	b.AddFile(lsp.FileAnalysis{
		Path: "src/service.py",
		Calls: []lsp.CallEdge{
			{
				From:       item("handle", "src/service.py", 2, 10),
				To:         item("helper", "src/util.py", 0, 5),
				FromRanges: []lsp.Range{rng(4, 4)},
			},
		},
	})

	// A call in a different file on the same line must not match.
	b.AnnotateCallSite("src/other.py", 5, []string{"wrong"}, nil)

	// Line 5 in 1-indexed terms; the edge above sits there.
	b.AnnotateCallSite("src/service.py", 5, []string{`"x"`}, map[string]string{"retries": "3"})

	g := b.Graph()
	if len(g.Edges) != 1 {
		t.Fatalf("edges = %+v", g.Edges)
	}
	e := g.Edges[0]
	if len(e.Args) != 1 || e.Args[0] != `"x"` {
		t.Errorf("args = %v", e.Args)
	}
	if e.Kwargs["retries"] != "3" {
		t.Errorf("kwargs = %v", e.Kwargs)
	}
}
