// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		filePath   string
		symbolPath string
		want       string
	}{
		{"src/pkg/repo.py", "Repo.save", "src.pkg.repo.Repo.save"},
		{"main.go", "main", "main.main"},
		{"src/app.ts", "", "src.app"},
		{"a/b/c.java", "C.m", "a.b.c.C.m"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.filePath, tt.symbolPath); got != tt.want {
			t.Errorf("Normalize(%q, %q) = %q, want %q", tt.filePath, tt.symbolPath, got, tt.want)
		}
	}
}

func TestCallGraphDynamicNode(t *testing.T) {
	g := NewCallGraph()
	g.AddNode(Node{QualifiedName: "pkg.a.f", FilePath: "pkg/a.py", LineStart: 1, LineEnd: 3})

	// Destination never registered: edge degrades to the dynamic node.
	g.AddEdge(Edge{Source: "pkg.a.f", Destination: "vendor.lib.g", CallSiteLine: 2})

	if len(g.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(g.Edges))
	}
	if g.Edges[0].Destination != DynamicNode {
		t.Errorf("destination = %q, want %q", g.Edges[0].Destination, DynamicNode)
	}
	if _, ok := g.Nodes[DynamicNode]; !ok {
		t.Error("dynamic node not pre-registered")
	}
}

func TestCallGraphEdgeDedup(t *testing.T) {
	g := NewCallGraph()
	g.AddNode(Node{QualifiedName: "a.f"})
	g.AddNode(Node{QualifiedName: "a.g"})

	e := Edge{Source: "a.f", Destination: "a.g", CallSiteLine: 10}
	g.AddEdge(e)
	g.AddEdge(e)
	g.AddEdge(Edge{Source: "a.f", Destination: "a.g", CallSiteLine: 11})

	if len(g.Edges) != 2 {
		t.Errorf("edges = %d, want 2 (duplicate collapsed)", len(g.Edges))
	}
}

func TestCallGraphRender(t *testing.T) {
	g := NewCallGraph()
	g.AddNode(Node{QualifiedName: "a.f"})
	g.AddNode(Node{QualifiedName: "a.g"})
	g.AddEdge(Edge{Source: "a.f", Destination: "a.g", CallSiteLine: 5})

	rendered := g.Render()
	if !strings.Contains(rendered, "a.f -> a.g (line 5)") {
		t.Errorf("render missing edge row: %q", rendered)
	}
}

func TestClassHierarchyBidirectional(t *testing.T) {
	h := NewClassHierarchy()
	h.Declare("pkg.models.Base", "pkg/models.py", 1, 10)
	h.AddInheritance("pkg.models.User", "pkg.models.Base")
	h.AddInheritance("pkg.models.User", "pkg.models.Base") // idempotent

	user := h["pkg.models.User"]
	base := h["pkg.models.Base"]
	if !reflect.DeepEqual(user.Superclasses, []string{"pkg.models.Base"}) {
		t.Errorf("superclasses = %v", user.Superclasses)
	}
	if !reflect.DeepEqual(base.Subclasses, []string{"pkg.models.User"}) {
		t.Errorf("subclasses = %v", base.Subclasses)
	}
}

func TestPackageDependenciesBidirectional(t *testing.T) {
	p := NewPackageDependencies()
	p.AddImport("app.api", "app.models")
	p.AddImport("app.api", "app.models") // idempotent
	p.AddImport("app.api", "app.api")    // self-import ignored

	api := p["app.api"]
	models := p["app.models"]
	if !reflect.DeepEqual(api.Imports, []string{"app.models"}) {
		t.Errorf("imports = %v", api.Imports)
	}
	if !reflect.DeepEqual(models.ImportedBy, []string{"app.api"}) {
		t.Errorf("imported_by = %v", models.ImportedBy)
	}
}

func TestStoreOverwriteAndNotFound(t *testing.T) {
	s := NewStore()

	if _, err := s.GetCFG("python"); !errors.Is(err, ErrDataNotFound) {
		t.Fatalf("err = %v, want ErrDataNotFound", err)
	}

	first := NewCallGraph()
	first.AddNode(Node{QualifiedName: "old.f"})
	s.AddCFG("python", first)

	second := NewCallGraph()
	second.AddNode(Node{QualifiedName: "new.f"})
	s.AddCFG("python", second)

	got, err := s.GetCFG("python")
	if err != nil {
		t.Fatalf("GetCFG: %v", err)
	}
	if _, ok := got.Nodes["old.f"]; ok {
		t.Error("prior slot leaked: later call must overwrite, not merge")
	}
	if _, ok := got.Nodes["new.f"]; !ok {
		t.Error("overwritten slot missing new data")
	}
}

func TestStoreLanguages(t *testing.T) {
	s := NewStore()
	s.AddCFG("python", NewCallGraph())
	s.AddSourceFiles("typescript", []string{"app.ts"})

	want := []string{"python", "typescript"}
	if got := s.Languages(); !reflect.DeepEqual(got, want) {
		t.Errorf("Languages() = %v, want %v", got, want)
	}
}
