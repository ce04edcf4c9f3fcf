// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"sort"
	"strings"
)

// DynamicNode is the synthesized node for call edges whose target could
// not be resolved to a concrete symbol (reflection, dynamic dispatch,
// calls into dependencies outside the repo).
const DynamicNode = "<dynamic>"

// =============================================================================
// CALL GRAPH
// =============================================================================

// Node is one symbol in the call graph.
type Node struct {
	// QualifiedName is the project-relative dotted name (unique per language).
	QualifiedName string `json:"qualified_name"`

	// FilePath is the repo-relative file declaring the symbol. Empty for
	// the synthesized dynamic node.
	FilePath string `json:"file_path,omitempty"`

	// LineStart is the 1-indexed first line of the declaration.
	LineStart int `json:"line_start,omitempty"`

	// LineEnd is the 1-indexed last line of the declaration.
	LineEnd int `json:"line_end,omitempty"`
}

// Edge is one call relationship.
type Edge struct {
	// Source is the qualified name of the caller.
	Source string `json:"source"`

	// Destination is the qualified name of the callee, possibly DynamicNode.
	Destination string `json:"destination"`

	// CallSiteLine is the 1-indexed line of the call site in the caller's file.
	CallSiteLine int `json:"call_site_line,omitempty"`

	// Args holds positional argument literals captured at the call
	// site, when the analyzer could recover them.
	Args []string `json:"args,omitempty"`

	// Kwargs maps keyword argument names to their literals, for
	// languages with keyword arguments.
	Kwargs map[string]string `json:"kwargs,omitempty"`
}

// CallGraph is one language's cross-file call graph. Mutated only by
// the aggregator during a build; read-only afterward.
type CallGraph struct {
	// Nodes maps qualified name to node. Keys are unique per language.
	Nodes map[string]Node `json:"nodes"`

	// Edges is the ordered edge collection. Duplicate (source, dest,
	// line) triples are collapsed on insert.
	Edges []Edge `json:"edges"`

	seen map[string]struct{}
}

// NewCallGraph creates an empty call graph with the dynamic node
// pre-registered.
func NewCallGraph() *CallGraph {
	g := &CallGraph{
		Nodes: make(map[string]Node),
		seen:  make(map[string]struct{}),
	}
	g.Nodes[DynamicNode] = Node{QualifiedName: DynamicNode}
	return g
}

// AddNode registers a node, keeping the first registration for a name.
func (g *CallGraph) AddNode(n Node) {
	if _, exists := g.Nodes[n.QualifiedName]; exists {
		return
	}
	g.Nodes[n.QualifiedName] = n
}

// AddEdge appends a call edge, synthesizing the dynamic node for an
// unknown destination and deduplicating repeats.
func (g *CallGraph) AddEdge(e Edge) {
	if e.Source == "" {
		return
	}
	if e.Destination == "" {
		e.Destination = DynamicNode
	}
	if _, known := g.Nodes[e.Destination]; !known {
		e.Destination = DynamicNode
	}
	key := fmt.Sprintf("%s\x00%s\x00%d", e.Source, e.Destination, e.CallSiteLine)
	if _, dup := g.seen[key]; dup {
		return
	}
	if g.seen == nil {
		g.seen = make(map[string]struct{})
	}
	g.seen[key] = struct{}{}
	g.Edges = append(g.Edges, e)
}

// Render produces the textual call-graph form handed to downstream
// consumers: one sorted "source -> destination (line N)" row per edge.
func (g *CallGraph) Render() string {
	lines := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.CallSiteLine > 0 {
			lines = append(lines, fmt.Sprintf("%s -> %s (line %d)", e.Source, e.Destination, e.CallSiteLine))
		} else {
			lines = append(lines, fmt.Sprintf("%s -> %s", e.Source, e.Destination))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// =============================================================================
// CLASS HIERARCHY
// =============================================================================

// HierarchyEntry records one class's place in the inheritance graph.
type HierarchyEntry struct {
	// Superclasses are the qualified names this class inherits from.
	Superclasses []string `json:"superclasses,omitempty"`

	// Subclasses are the qualified names inheriting from this class.
	Subclasses []string `json:"subclasses,omitempty"`

	// FilePath is the repo-relative file declaring the class.
	FilePath string `json:"file_path,omitempty"`

	// LineStart is the 1-indexed first line of the declaration.
	LineStart int `json:"line_start,omitempty"`

	// LineEnd is the 1-indexed last line of the declaration.
	LineEnd int `json:"line_end,omitempty"`
}

// ClassHierarchy maps qualified class name to its entry.
//
// Invariant: superclass/subclass listings are bidirectionally
// consistent — AddInheritance maintains both directions.
type ClassHierarchy map[string]*HierarchyEntry

// NewClassHierarchy creates an empty hierarchy.
func NewClassHierarchy() ClassHierarchy {
	return make(ClassHierarchy)
}

// Declare registers a class with its location without inheritance.
func (h ClassHierarchy) Declare(name, filePath string, lineStart, lineEnd int) {
	entry := h.entry(name)
	entry.FilePath = filePath
	entry.LineStart = lineStart
	entry.LineEnd = lineEnd
}

// AddInheritance records child inheriting from parent, updating both
// directions.
func (h ClassHierarchy) AddInheritance(child, parent string) {
	childEntry := h.entry(child)
	parentEntry := h.entry(parent)
	if !contains(childEntry.Superclasses, parent) {
		childEntry.Superclasses = append(childEntry.Superclasses, parent)
	}
	if !contains(parentEntry.Subclasses, child) {
		parentEntry.Subclasses = append(parentEntry.Subclasses, child)
	}
}

func (h ClassHierarchy) entry(name string) *HierarchyEntry {
	if e, ok := h[name]; ok {
		return e
	}
	e := &HierarchyEntry{}
	h[name] = e
	return e
}

// =============================================================================
// PACKAGE DEPENDENCIES
// =============================================================================

// PackageEntry records one package's import relationships.
type PackageEntry struct {
	// Imports are packages this package imports.
	Imports []string `json:"imports,omitempty"`

	// ImportedBy are packages importing this package.
	ImportedBy []string `json:"imported_by,omitempty"`
}

// PackageDependencies maps package name to its entry, bidirectionally
// consistent like ClassHierarchy.
type PackageDependencies map[string]*PackageEntry

// NewPackageDependencies creates an empty dependency map.
func NewPackageDependencies() PackageDependencies {
	return make(PackageDependencies)
}

// AddImport records importer depending on imported, updating both
// directions. Self-imports are ignored.
func (p PackageDependencies) AddImport(importer, imported string) {
	if importer == imported || importer == "" || imported == "" {
		return
	}
	from := p.entry(importer)
	to := p.entry(imported)
	if !contains(from.Imports, imported) {
		from.Imports = append(from.Imports, imported)
	}
	if !contains(to.ImportedBy, importer) {
		to.ImportedBy = append(to.ImportedBy, importer)
	}
}

func (p PackageDependencies) entry(name string) *PackageEntry {
	if e, ok := p[name]; ok {
		return e
	}
	e := &PackageEntry{}
	p[name] = e
	return e
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
