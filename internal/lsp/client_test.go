// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/AleutianAI/codescope/internal/lang"
)

func TestNewClientDispatch(t *testing.T) {
	reg := lang.NewRegistry()
	opts := DefaultOptions()

	for _, language := range []string{"python", "typescript", "java", "go", "php"} {
		cfg, ok := reg.Get(language)
		if !ok {
			t.Fatalf("no registry entry for %s", language)
		}
		c, err := New(cfg, t.TempDir(), opts)
		if err != nil {
			t.Fatalf("New(%s): %v", language, err)
		}
		if c.Language() != language {
			t.Errorf("Language() = %q, want %q", c.Language(), language)
		}
	}

	if _, err := New(lang.ServerConfig{Language: "cobol"}, t.TempDir(), opts); err == nil {
		t.Error("expected error for unsupported language")
	}
}

func TestWalkSymbolsPaths(t *testing.T) {
	symbols := []DocumentSymbol{
		{
			Name: "Repo",
			Kind: SymbolKindClass,
			Children: []DocumentSymbol{
				{Name: "save", Kind: SymbolKindMethod},
				{Name: "load", Kind: SymbolKindMethod},
			},
		},
		{Name: "main", Kind: SymbolKindFunction},
	}

	var paths []string
	walkSymbols(symbols, "", func(path string, sym DocumentSymbol) {
		paths = append(paths, path)
	})

	want := []string{"Repo", "Repo.save", "Repo.load", "main"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestSymbolsLookHierarchical(t *testing.T) {
	hierarchical := json.RawMessage(`[{"name":"f","kind":12,"range":{"start":{"line":0,"character":0},"end":{"line":1,"character":0}},"selectionRange":{"start":{"line":0,"character":5},"end":{"line":0,"character":6}}}]`)
	if !symbolsLookHierarchical(hierarchical) {
		t.Error("DocumentSymbol array not recognized as hierarchical")
	}

	flat := json.RawMessage(`[{"name":"f","kind":12,"location":{"uri":"file:///a.py","range":{"start":{"line":0,"character":0},"end":{"line":1,"character":0}}}}]`)
	if symbolsLookHierarchical(flat) {
		t.Error("SymbolInformation array misclassified as hierarchical")
	}
}

func TestFlattenedToTree(t *testing.T) {
	flat := []SymbolInformation{
		{Name: "Repo", Kind: SymbolKindClass},
		{Name: "save", Kind: SymbolKindMethod, ContainerName: "Repo"},
		{Name: "helper", Kind: SymbolKindFunction},
	}

	tree := flattenedToTree(flat)
	if len(tree) != 2 {
		t.Fatalf("roots = %d, want 2", len(tree))
	}
	if tree[0].Name != "Repo" || len(tree[0].Children) != 1 {
		t.Errorf("Repo children = %d, want 1", len(tree[0].Children))
	}
	if tree[0].Children[0].Name != "save" {
		t.Errorf("child = %q, want save", tree[0].Children[0].Name)
	}
	if tree[1].Name != "helper" {
		t.Errorf("second root = %q, want helper", tree[1].Name)
	}
}

func TestPathURIRoundTrip(t *testing.T) {
	path := "/home/user/project/src/main.py"
	uri := PathToURI(path)
	if uri != "file:///home/user/project/src/main.py" {
		t.Errorf("uri = %q", uri)
	}
	if got := URIToPath(uri); got != path {
		t.Errorf("round trip = %q, want %q", got, path)
	}
}

func TestClientCloseIdempotent(t *testing.T) {
	reg := lang.NewRegistry()
	cfg, _ := reg.Get("python")
	c := newBaseClient(cfg, t.TempDir(), DefaultOptions())

	if err := c.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(t.Context()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if c.State() != ClientStateClosed {
		t.Errorf("state = %v, want closed", c.State())
	}
}
