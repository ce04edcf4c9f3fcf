// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"path/filepath"
	"strings"

	"github.com/AleutianAI/codescope/internal/lsp"
)

// Builder merges one language's per-file LSP output into the graph
// model. Per-file results accumulate independently of order.
//
// Thread Safety: not safe for concurrent use; one builder per language
// per run.
type Builder struct {
	rootPath string
	language string

	graph      *CallGraph
	hierarchy  ClassHierarchy
	references map[string][]Reference
	files      []string
}

// NewBuilder creates a builder for one language rooted at rootPath.
func NewBuilder(rootPath, language string) *Builder {
	return &Builder{
		rootPath:   rootPath,
		language:   language,
		graph:      NewCallGraph(),
		hierarchy:  NewClassHierarchy(),
		references: make(map[string][]Reference),
	}
}

// AddFile folds one file's raw analysis into the model.
func (b *Builder) AddFile(fa lsp.FileAnalysis) {
	b.files = append(b.files, fa.Path)
	b.addSymbols(fa.Path, fa.Symbols, "")

	for _, edge := range fa.Calls {
		b.addCallEdge(edge)
	}

	for symbolPath, locations := range fa.References {
		qname := Normalize(fa.Path, symbolPath)
		for _, loc := range locations {
			rel, ok := b.relativize(loc.URI)
			if !ok {
				continue
			}
			b.references[qname] = append(b.references[qname], Reference{
				FilePath: rel,
				Line:     loc.Range.Start.Line + 1,
			})
		}
	}
}

// addSymbols registers nodes for callables and hierarchy entries for
// containers, depth-first.
func (b *Builder) addSymbols(filePath string, symbols []lsp.DocumentSymbol, prefix string) {
	for _, sym := range symbols {
		symbolPath := sym.Name
		if prefix != "" {
			symbolPath = prefix + "." + sym.Name
		}
		qname := Normalize(filePath, symbolPath)

		if sym.Kind.IsCallable() {
			b.graph.AddNode(Node{
				QualifiedName: qname,
				FilePath:      filePath,
				LineStart:     sym.Range.Start.Line + 1,
				LineEnd:       sym.Range.End.Line + 1,
			})
		}
		if sym.Kind.IsContainer() {
			b.hierarchy.Declare(qname, filePath, sym.Range.Start.Line+1, sym.Range.End.Line+1)
		}

		b.addSymbols(filePath, sym.Children, symbolPath)
	}
}

// addCallEdge resolves both ends of a raw call edge. An end outside the
// repository degrades to the dynamic node.
func (b *Builder) addCallEdge(edge lsp.CallEdge) {
	source := b.itemName(edge.From)
	if source == "" {
		// A caller outside the repo contributes nothing to the model.
		return
	}
	dest := b.itemName(edge.To)

	line := 0
	if len(edge.FromRanges) > 0 {
		line = edge.FromRanges[0].Start.Line + 1
	}

	// The source node may live in a file not yet folded in; register it
	// from the item so edge insertion never precedes its endpoints.
	if rel, ok := b.relativize(edge.From.URI); ok {
		b.graph.AddNode(Node{
			QualifiedName: source,
			FilePath:      rel,
			LineStart:     edge.From.Range.Start.Line + 1,
			LineEnd:       edge.From.Range.End.Line + 1,
		})
	}
	if dest != "" {
		if rel, ok := b.relativize(edge.To.URI); ok {
			b.graph.AddNode(Node{
				QualifiedName: dest,
				FilePath:      rel,
				LineStart:     edge.To.Range.Start.Line + 1,
				LineEnd:       edge.To.Range.End.Line + 1,
			})
		}
	}

	b.graph.AddEdge(Edge{
		Source:       source,
		Destination:  dest,
		CallSiteLine: line,
	})
}

// AnnotateCallSite attaches argument literals to edges whose caller is
// declared in filePath with a call site at line. The first annotation
// for an edge wins; LSP edges cannot distinguish two calls sharing a
// line.
func (b *Builder) AnnotateCallSite(filePath string, line int, args []string, kwargs map[string]string) {
	if line <= 0 || (len(args) == 0 && len(kwargs) == 0) {
		return
	}
	for i := range b.graph.Edges {
		e := &b.graph.Edges[i]
		if e.CallSiteLine != line || len(e.Args) > 0 || len(e.Kwargs) > 0 {
			continue
		}
		src, ok := b.graph.Nodes[e.Source]
		if !ok || src.FilePath != filePath {
			continue
		}
		e.Args = append(e.Args, args...)
		if len(kwargs) > 0 {
			e.Kwargs = make(map[string]string, len(kwargs))
			for k, v := range kwargs {
				e.Kwargs[k] = v
			}
		}
	}
}

// itemName computes the qualified name of a call-hierarchy item, or ""
// when the item lives outside the repository.
func (b *Builder) itemName(item lsp.CallHierarchyItem) string {
	rel, ok := b.relativize(item.URI)
	if !ok {
		return ""
	}
	return Normalize(rel, item.Name)
}

// relativize converts a document URI to a repo-relative slash path.
func (b *Builder) relativize(uri string) (string, bool) {
	abs := lsp.URIToPath(uri)
	rel, err := filepath.Rel(b.rootPath, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Publish stores every accumulated slot for this language, overwriting
// prior state.
func (b *Builder) Publish(store *Store) {
	store.AddCFG(b.language, b.graph)
	store.AddClassHierarchy(b.language, b.hierarchy)
	store.AddReferences(b.language, b.references)
	store.AddSourceFiles(b.language, b.files)
}

// Graph exposes the call graph under construction, used by tests and
// the incremental pruner.
func (b *Builder) Graph() *CallGraph {
	return b.graph
}

// Hierarchy exposes the class hierarchy under construction.
func (b *Builder) Hierarchy() ClassHierarchy {
	return b.hierarchy
}
