// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine runs the full analysis pipeline: detect languages,
// drive one LSP client per language, fold per-file results into the
// graph model, and enrich it with tree-sitter structural facts.
//
// Languages analyze concurrently and fail independently: a language
// whose server cannot start surfaces as "no data for that language,"
// never as a run failure.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	pathpkg "path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codescope/internal/change"
	"github.com/AleutianAI/codescope/internal/config"
	"github.com/AleutianAI/codescope/internal/graph"
	"github.com/AleutianAI/codescope/internal/ignore"
	"github.com/AleutianAI/codescope/internal/lang"
	"github.com/AleutianAI/codescope/internal/lsp"
	"github.com/AleutianAI/codescope/internal/store"
	"github.com/AleutianAI/codescope/internal/treesit"
)

// LanguageReport summarizes one language's analysis.
type LanguageReport struct {
	// Language is the language identifier.
	Language string

	// Files is how many source files were submitted.
	Files int

	// FailedFiles is how many files were recorded and skipped.
	FailedFiles int

	// Nodes and Edges size the resulting call graph.
	Nodes int
	Edges int

	// DiagnosticErrors is the total error-severity diagnostics the
	// language server published during analysis.
	DiagnosticErrors int

	// Err is the startup failure that kept this language out of the
	// run, nil on success.
	Err error
}

// Report is the outcome of one full analysis run.
type Report struct {
	// Languages holds one entry per active language, sorted by name.
	Languages []LanguageReport

	// FileHashes maps every analyzed file to its normalized content
	// hash, ready to persist as run metadata.
	FileHashes map[string]string
}

// Engine owns one repository's analysis state.
//
// Thread Safety: RunFull must not run concurrently with itself; the
// aggregation store it fills is safe to read concurrently afterward.
type Engine struct {
	cfg      config.Config
	rootPath string

	registry *lang.Registry
	detector *lang.Detector
	agg      *graph.Store

	// snapshots persists per-language analysis when non-nil.
	snapshots *store.Store
}

// New creates an engine rooted at rootPath. snapshots may be nil to
// skip persistence.
func New(cfg config.Config, rootPath string, snapshots *store.Store) *Engine {
	registry := lang.NewRegistry()
	ignorer := ignore.NewEvaluator(rootPath)
	return &Engine{
		cfg:       cfg,
		rootPath:  rootPath,
		registry:  registry,
		detector:  lang.NewDetector(registry, ignorer, cfg.MinLanguagePercent),
		agg:       graph.NewStore(),
		snapshots: snapshots,
	}
}

// Store exposes the aggregation store filled by RunFull.
func (e *Engine) Store() *graph.Store {
	return e.agg
}

// clientOptions maps run configuration onto per-client options.
func (e *Engine) clientOptions() lsp.Options {
	opts := lsp.DefaultOptions()
	opts.InitializeTimeout = e.cfg.InitializeTimeout
	opts.RequestTimeout = e.cfg.RequestTimeout
	opts.TSWarmupDelay = e.cfg.TypeScript.WarmupDelay
	opts.TSRepresentativeFiles = e.cfg.TypeScript.RepresentativeFiles
	opts.JavaHeapMB = e.cfg.Java.HeapMB
	opts.JavaImportTimeout = e.cfg.Java.ImportTimeout
	return opts
}

// RunFull analyzes the whole repository.
//
// Description:
//
//	Detects languages, then analyzes each active language in its own
//	goroutine. Per-language failures are recorded in the report and
//	never abort the run. On completion each successful language's
//	model is persisted as a snapshot (when a snapshot store is
//	configured) and every analyzed file is hashed for run metadata.
//
// Outputs:
//
//	*Report - Per-language outcomes plus the file hash snapshot.
//	error - Non-nil only when the repository root is unreadable.
func (e *Engine) RunFull(ctx context.Context) (*Report, error) {
	detection, err := e.detector.Detect(e.rootPath)
	if err != nil {
		return nil, err
	}

	active := detection.Active()
	report := &Report{FileHashes: make(map[string]string)}
	if len(active) == 0 {
		slog.Warn("no languages detected above threshold",
			slog.String("root", e.rootPath))
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range active {
		g.Go(func() error {
			rep, hashes := e.analyzeLanguage(gctx, l, detection.GoModulePath)
			mu.Lock()
			report.Languages = append(report.Languages, rep)
			for path, h := range hashes {
				report.FileHashes[path] = h
			}
			mu.Unlock()
			// Per-language failures are carried in the report.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Languages, func(i, j int) bool {
		return report.Languages[i].Language < report.Languages[j].Language
	})

	if e.snapshots != nil {
		for _, rep := range report.Languages {
			if rep.Err != nil {
				continue
			}
			snap, err := store.SnapshotFrom(e.agg, rep.Language)
			if err != nil {
				slog.Error("snapshot assembly failed",
					slog.String("language", rep.Language),
					slog.String("error", err.Error()))
				continue
			}
			if err := e.snapshots.SaveSnapshot(ctx, snap); err != nil {
				slog.Error("snapshot persistence failed",
					slog.String("language", rep.Language),
					slog.String("error", err.Error()))
			}
		}
	}
	return report, nil
}

// ReanalyzeLanguage re-runs the pipeline for one language, overwriting
// its aggregation slots and persisted snapshot.
//
// Outputs:
//
//	error - Non-nil if detection fails, the language is not active in
//	the repository, or its analysis failed outright.
func (e *Engine) ReanalyzeLanguage(ctx context.Context, language string) error {
	detection, err := e.detector.Detect(e.rootPath)
	if err != nil {
		return err
	}

	for _, l := range detection.Active() {
		if l.Name != language {
			continue
		}
		rep, _ := e.analyzeLanguage(ctx, l, detection.GoModulePath)
		if rep.Err != nil {
			return fmt.Errorf("reanalyze %s: %w", language, rep.Err)
		}
		if e.snapshots != nil {
			snap, err := store.SnapshotFrom(e.agg, language)
			if err != nil {
				return err
			}
			if err := e.snapshots.SaveSnapshot(ctx, snap); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("language %s not active in %s", language, e.rootPath)
}

// analyzeLanguage runs one language end to end. All failures are
// folded into the report entry.
func (e *Engine) analyzeLanguage(ctx context.Context, l lang.Language, goModule string) (LanguageReport, map[string]string) {
	rep := LanguageReport{Language: l.Name}

	files, err := e.detector.SourceFiles(e.rootPath, l)
	if err != nil {
		rep.Err = err
		return rep, nil
	}
	rep.Files = len(files)
	if len(files) == 0 {
		return rep, nil
	}

	client, err := lsp.New(l.Config, e.rootPath, e.clientOptions())
	if err != nil {
		rep.Err = err
		return rep, nil
	}
	if err := client.Start(ctx); err != nil {
		slog.Error("language server startup failed, skipping language",
			slog.String("language", l.Name),
			slog.String("error", err.Error()))
		rep.Err = err
		return rep, nil
	}
	defer client.Close(ctx)

	result, err := client.BuildStaticAnalysis(ctx, files)
	if err != nil {
		rep.Err = err
		return rep, nil
	}
	rep.FailedFiles = len(result.Failures)
	for _, n := range client.ErrorDiagnostics() {
		rep.DiagnosticErrors += n
	}

	builder := graph.NewBuilder(e.rootPath, l.Name)
	for _, fa := range result.Files {
		builder.AddFile(fa)
	}

	deps, hashes := e.structuralFacts(ctx, builder, l.Name, files, goModule)
	builder.Publish(e.agg)
	e.agg.AddPackageDependencies(l.Name, deps)

	rep.Nodes = len(builder.Graph().Nodes)
	rep.Edges = len(builder.Graph().Edges)

	slog.Info("language analysis complete",
		slog.String("language", l.Name),
		slog.Int("files", rep.Files),
		slog.Int("failed_files", rep.FailedFiles),
		slog.Int("nodes", rep.Nodes),
		slog.Int("edges", rep.Edges),
		slog.Int("diagnostic_errors", rep.DiagnosticErrors))
	return rep, hashes
}

// structuralFacts parses every file with tree-sitter, deriving package
// dependencies and inheritance edges the LSP symbol pass cannot see,
// and hashing content for run metadata along the way.
func (e *Engine) structuralFacts(ctx context.Context, builder *graph.Builder, language string, files []string, goModule string) (graph.PackageDependencies, map[string]string) {
	deps := graph.NewPackageDependencies()
	hashes := make(map[string]string, len(files))
	extractor := treesit.NewExtractor()

	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(e.rootPath, filepath.FromSlash(rel)))
		if err != nil {
			slog.Debug("unreadable source file skipped",
				slog.String("file", rel),
				slog.String("error", err.Error()))
			continue
		}
		hashes[rel] = change.Hash(string(content))

		facts, err := extractor.Extract(ctx, language, content)
		if err != nil {
			slog.Debug("tree-sitter extraction failed",
				slog.String("file", rel),
				slog.String("error", err.Error()))
			continue
		}

		importer := graph.Component(rel)
		for _, imp := range facts.Imports {
			if target := normalizeImport(language, rel, imp.Path, goModule); target != "" {
				deps.AddImport(importer, target)
			}
		}
		for _, inh := range facts.Inherits {
			child := resolveDeclared(builder.Hierarchy(), rel, inh.Child)
			parent := resolveDeclared(builder.Hierarchy(), rel, inh.Parent)
			builder.Hierarchy().AddInheritance(child, parent)
		}
		for _, call := range facts.Calls {
			builder.AnnotateCallSite(rel, call.Line, call.Args, call.Kwargs)
		}
	}
	return deps, hashes
}

// resolveDeclared maps a class name as written to a declared qualified
// name: exact match in the declaring file first, then a unique dotted
// suffix anywhere in the hierarchy, else the name as written (external
// types stay unqualified).
func resolveDeclared(h graph.ClassHierarchy, rel, name string) string {
	exact := graph.Normalize(rel, name)
	if _, ok := h[exact]; ok {
		return exact
	}

	var matches []string
	suffix := "." + name
	for qualified := range h {
		if strings.HasSuffix(qualified, suffix) {
			matches = append(matches, qualified)
		}
	}
	if len(matches) == 1 {
		return matches[0]
	}
	sort.Strings(matches)
	if len(matches) > 1 {
		// Ambiguous simple name; prefer the lexically first for
		// deterministic output.
		return matches[0]
	}
	return name
}

// normalizeImport converts an import path as written into the dotted
// project-relative form used by the package-dependency map. Returns ""
// for imports that cannot be attributed.
func normalizeImport(language, rel, path, goModule string) string {
	switch language {
	case "python":
		return normalizePythonImport(rel, path)
	case "go":
		if goModule != "" && strings.HasPrefix(path, goModule+"/") {
			return strings.ReplaceAll(strings.TrimPrefix(path, goModule+"/"), "/", ".")
		}
		if path == goModule {
			return "."
		}
		return strings.ReplaceAll(path, "/", ".")
	case "typescript":
		if strings.HasPrefix(path, ".") {
			return resolveRelativePath(rel, path)
		}
		// Bare specifier: a package name, kept as written.
		return path
	case "php":
		return strings.ReplaceAll(path, `\`, ".")
	default:
		// Java import paths are already dotted.
		return path
	}
}

// normalizePythonImport resolves leading-dot relative imports against
// the importing file's package.
func normalizePythonImport(rel, path string) string {
	if !strings.HasPrefix(path, ".") {
		return path
	}
	dots := 0
	for dots < len(path) && path[dots] == '.' {
		dots++
	}
	remainder := path[dots:]

	dir := pathpkg.Dir(rel)
	parts := []string{}
	if dir != "." {
		parts = strings.Split(dir, "/")
	}
	// One dot is the current package; each extra dot climbs a level.
	up := dots - 1
	if up > len(parts) {
		return ""
	}
	parts = parts[:len(parts)-up]

	base := strings.Join(parts, ".")
	switch {
	case base == "" && remainder == "":
		return ""
	case base == "":
		return remainder
	case remainder == "":
		return base
	default:
		return base + "." + remainder
	}
}

// resolveRelativePath resolves "./x" and "../x" specifiers against the
// importing file's directory, returning the dotted form.
func resolveRelativePath(rel, target string) string {
	joined := pathpkg.Join(pathpkg.Dir(rel), target)
	if strings.HasPrefix(joined, "..") {
		return ""
	}
	return strings.ReplaceAll(joined, "/", ".")
}
