// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrDataNotFound signals that a language was never analyzed. Callers
// must branch on it rather than treat it as fatal: a failed language
// surfaces as "no data", never as an aborted run.
var ErrDataNotFound = errors.New("no analysis data for language")

// Store accumulates per-language analysis state.
//
// Description:
//
//	Each Add method overwrites that language's prior slot entirely; no
//	cross-call merge happens. One Store instance is owned by one
//	analysis invocation.
//
// Thread Safety:
//
//	Safe for concurrent use. Language clients analyze concurrently and
//	publish into disjoint slots.
type Store struct {
	mu          sync.RWMutex
	callGraphs  map[string]*CallGraph
	hierarchies map[string]ClassHierarchy
	packageDeps map[string]PackageDependencies
	references  map[string]map[string][]Reference
	sourceFiles map[string][]string
}

// Reference is one usage location of a symbol.
type Reference struct {
	// FilePath is the repo-relative file containing the usage.
	FilePath string `json:"file_path"`

	// Line is the 1-indexed line of the usage.
	Line int `json:"line"`
}

// NewStore creates an empty aggregation store.
func NewStore() *Store {
	return &Store{
		callGraphs:  make(map[string]*CallGraph),
		hierarchies: make(map[string]ClassHierarchy),
		packageDeps: make(map[string]PackageDependencies),
		references:  make(map[string]map[string][]Reference),
		sourceFiles: make(map[string][]string),
	}
}

// AddCFG stores a language's call graph, replacing any prior graph.
func (s *Store) AddCFG(language string, g *CallGraph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callGraphs[language] = g
}

// AddClassHierarchy stores a language's class hierarchy, replacing any
// prior hierarchy.
func (s *Store) AddClassHierarchy(language string, h ClassHierarchy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hierarchies[language] = h
}

// AddPackageDependencies stores a language's package dependencies,
// replacing any prior map.
func (s *Store) AddPackageDependencies(language string, deps PackageDependencies) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packageDeps[language] = deps
}

// AddReferences stores a language's symbol references keyed by
// qualified name, replacing any prior set.
func (s *Store) AddReferences(language string, refs map[string][]Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.references[language] = refs
}

// AddSourceFiles stores the analyzed-file list for a language,
// replacing any prior list.
func (s *Store) AddSourceFiles(language string, files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)
	s.sourceFiles[language] = sorted
}

// GetCFG returns a language's call graph or ErrDataNotFound.
func (s *Store) GetCFG(language string) (*CallGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.callGraphs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, language)
	}
	return g, nil
}

// GetClassHierarchy returns a language's class hierarchy or
// ErrDataNotFound.
func (s *Store) GetClassHierarchy(language string) (ClassHierarchy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hierarchies[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, language)
	}
	return h, nil
}

// GetPackageDependencies returns a language's package dependencies or
// ErrDataNotFound.
func (s *Store) GetPackageDependencies(language string) (PackageDependencies, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.packageDeps[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, language)
	}
	return d, nil
}

// GetReferences returns a language's references or ErrDataNotFound.
func (s *Store) GetReferences(language string) (map[string][]Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.references[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, language)
	}
	return r, nil
}

// GetSourceFiles returns the analyzed files for a language or
// ErrDataNotFound.
func (s *Store) GetSourceFiles(language string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.sourceFiles[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, language)
	}
	return f, nil
}

// Languages returns every language with at least one stored slot,
// sorted.
func (s *Store) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]struct{})
	for l := range s.callGraphs {
		set[l] = struct{}{}
	}
	for l := range s.hierarchies {
		set[l] = struct{}{}
	}
	for l := range s.packageDeps {
		set[l] = struct{}{}
	}
	for l := range s.sourceFiles {
		set[l] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// FilesOwnedBy maps every analyzed file to the components (qualified
// name prefixes) declared in it, derived from the call graph nodes.
func (s *Store) FilesOwnedBy(language string) map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string)
	g, ok := s.callGraphs[language]
	if !ok {
		return out
	}
	for _, n := range g.Nodes {
		if n.FilePath == "" {
			continue
		}
		component := Normalize(n.FilePath, "")
		if !contains(out[n.FilePath], component) {
			out[n.FilePath] = append(out[n.FilePath], component)
		}
	}
	for _, comps := range out {
		sort.Strings(comps)
	}
	return out
}

// =============================================================================
// QUALIFIED NAMES
// =============================================================================

// Normalize converts a repo-relative file path and a dotted symbol path
// into the canonical project-relative dotted qualified name, so
// cross-file name comparisons stay stable across runs.
//
// Inputs:
//
//	filePath - Repo-relative slash path, e.g. "src/pkg/repo.py"
//	symbolPath - Dotted symbol path within the file, e.g. "Repo.save"
//
// Outputs:
//
//	string - e.g. "src.pkg.repo.Repo.save"
func Normalize(filePath, symbolPath string) string {
	base := strings.TrimSuffix(filePath, path.Ext(filePath))
	base = strings.ReplaceAll(strings.Trim(base, "/"), "/", ".")
	if symbolPath == "" {
		return base
	}
	if base == "" {
		return symbolPath
	}
	return base + "." + symbolPath
}

// Component returns the component (module) name owning a repo-relative
// file path: its qualified name with no symbol segment.
func Component(filePath string) string {
	return Normalize(filePath, "")
}
