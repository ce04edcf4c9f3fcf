// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRules(t *testing.T) {
	e := NewEvaluator(t.TempDir())

	ignored := []string{
		"node_modules/react/index.js",
		"web/node_modules/lodash/lodash.js",
		".git/HEAD",
		"vendor/golang.org/x/sync/errgroup/errgroup.go",
		"pkg/__pycache__/mod.pyc",
		"app/static/app.min.js",
	}
	for _, p := range ignored {
		if !e.Ignored(p) {
			t.Errorf("Ignored(%q) = false, want true", p)
		}
	}

	kept := []string{
		"main.go",
		"src/app.ts",
		"services/api/handler.py",
		"Builder.java",
	}
	for _, p := range kept {
		if e.Ignored(p) {
			t.Errorf("Ignored(%q) = true, want false", p)
		}
	}
}

func TestGitignoreFileIsHonored(t *testing.T) {
	root := t.TempDir()
	gitignore := "# generated\nout/\n*.gen.go\n!keep.gen.go\n"
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(gitignore), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e := NewEvaluator(root)

	if !e.Ignored("out/bundle.js") {
		t.Errorf("out/ rule not applied")
	}
	if !e.Ignored("api/types.gen.go") {
		t.Errorf("*.gen.go rule not applied")
	}
	if e.Ignored("keep.gen.go") {
		t.Errorf("negation rule not applied")
	}
	if e.Ignored("cmd/main.go") {
		t.Errorf("unrelated file ignored")
	}
}

func TestFromPatterns(t *testing.T) {
	e := NewEvaluatorFromPatterns([]string{"docs/", "", "  "})
	if !e.Ignored("docs/readme.md") {
		t.Errorf("docs/ rule not applied")
	}
	// No defaults in this mode.
	if e.Ignored("node_modules/x.js") {
		t.Errorf("defaults unexpectedly active")
	}
}
