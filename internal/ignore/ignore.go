// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ignore evaluates gitignore-style rules for repository walkers.
//
// The language detector and every file walker in codescope consult one
// Evaluator so that generated code, vendored dependencies, and build
// output never reach the LSP clients or the change classifier.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultPatterns are always active, independent of .gitignore contents.
// They use gitignore syntax and go through the same compilation as
// .gitignore lines, so directory rules apply at any depth.
var defaultPatterns = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
	"*.pyc",
	".venv/",
	"venv/",
	".idea/",
	".vscode/",
	".codescope/",
	"*.min.js",
	"*.map",
}

// rule is a single compiled ignore pattern.
type rule struct {
	pattern string
	negate  bool
}

// Evaluator answers "should this path be skipped?" for repo walkers.
//
// Thread Safety: immutable after construction; safe for concurrent use.
type Evaluator struct {
	rules []rule
}

// NewEvaluator builds an evaluator from the built-in defaults plus the
// repository's top-level .gitignore, when present.
//
// Inputs:
//
//	root - Repository root; its .gitignore is read if readable.
//
// Outputs:
//
//	*Evaluator - Never nil; a missing .gitignore is not an error.
func NewEvaluator(root string) *Evaluator {
	e := &Evaluator{}
	for _, p := range defaultPatterns {
		e.rules = append(e.rules, compile(p))
	}
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return e
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e.rules = append(e.rules, compile(line))
	}
	return e
}

// NewEvaluatorFromPatterns builds an evaluator from explicit patterns,
// skipping the repository defaults. Used by tests and callers that
// manage their own rule set.
func NewEvaluatorFromPatterns(patterns []string) *Evaluator {
	e := &Evaluator{}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			e.rules = append(e.rules, compile(p))
		}
	}
	return e
}

// compile translates one gitignore line into a doublestar pattern.
func compile(line string) rule {
	r := rule{}
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	// Directory rules match everything beneath them.
	if strings.HasSuffix(line, "/") {
		line += "**"
	}
	// Patterns without a slash match at any depth, like git does.
	if !strings.Contains(strings.TrimSuffix(line, "/**"), "/") && !strings.HasPrefix(line, "**") {
		line = "**/" + line
	}
	line = strings.TrimPrefix(line, "/")
	r.pattern = line
	return r
}

// Ignored reports whether the slash-separated repo-relative path is
// excluded. Later rules win, so a negation can re-include a path an
// earlier rule excluded.
func (e *Evaluator) Ignored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	ignored := false
	for _, r := range e.rules {
		match, err := doublestar.Match(r.pattern, relPath)
		if err != nil || !match {
			// Also try matching as a directory prefix.
			if ok, _ := doublestar.Match(r.pattern, relPath+"/"); !ok {
				continue
			}
		}
		ignored = !r.negate
	}
	return ignored
}
