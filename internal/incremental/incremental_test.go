// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package incremental

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/codescope/internal/change"
	"github.com/AleutianAI/codescope/internal/gitdiff"
)

// =============================================================================
// Metadata Tests
// =============================================================================

func TestMetadataSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := NewMetadata("abc123", map[string]string{"src/a.py": "h1"})

	if err := SaveMetadata(dir, meta); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadMetadata(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CommitHash != "abc123" || got.FileContentHashes["src/a.py"] != "h1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.AnalysisTimestamp == "" {
		t.Fatal("timestamp missing")
	}
}

func TestLoadMetadataMissing(t *testing.T) {
	_, err := LoadMetadata(t.TempDir())
	if !errors.Is(err, ErrNoMetadata) {
		t.Fatalf("want ErrNoMetadata, got %v", err)
	}
}

func TestLoadMetadataMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadMetadata(dir)
	if !errors.Is(err, ErrNoMetadata) {
		t.Fatalf("malformed file should degrade to ErrNoMetadata, got %v", err)
	}
}

func TestLoadMetadataLegacyFallback(t *testing.T) {
	dir := t.TempDir()
	legacy := []byte(`{"commit_hash": "deadbeef", "version": "0.9.1"}`)
	if err := os.WriteFile(filepath.Join(dir, LegacyVersionFile), legacy, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadMetadata(dir)
	if err != nil {
		t.Fatalf("legacy load: %v", err)
	}
	if got.CommitHash != "deadbeef" || !got.Legacy {
		t.Fatalf("legacy metadata: %+v", got)
	}
	if len(got.FileContentHashes) != 0 {
		t.Fatal("legacy metadata must carry no file hashes")
	}
}

// =============================================================================
// Orchestrator Tests
// =============================================================================

// mockUpdater records component actions and optionally fails one.
type mockUpdater struct {
	reanalyzed  []string
	refreshed   []string
	removed     []string
	remaining   int
	failingName string
}

func (m *mockUpdater) Reanalyze(_ context.Context, component string) error {
	if component == m.failingName {
		return errors.New("simulated reanalysis failure")
	}
	m.reanalyzed = append(m.reanalyzed, component)
	return nil
}

func (m *mockUpdater) RefreshDescription(_ context.Context, component string) error {
	m.refreshed = append(m.refreshed, component)
	return nil
}

func (m *mockUpdater) RemoveFile(_ context.Context, component, filePath string) (int, error) {
	m.removed = append(m.removed, component+":"+filePath)
	return m.remaining, nil
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// initRepo creates a repository with one committed Python file per entry.
func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "config", "user.email", "test@test.com")
	gitRun(t, dir, "config", "user.name", "Test")
	for name, content := range files {
		writeFile(t, dir, name, content)
	}
	gitRun(t, dir, "add", "-A")
	gitRun(t, dir, "commit", "-m", "initial")
	return dir
}

func commitAll(t *testing.T, dir, message string) {
	t.Helper()
	gitRun(t, dir, "add", "-A")
	gitRun(t, dir, "commit", "-m", message)
}

// seedMetadata persists run metadata for the repository's current HEAD.
func seedMetadata(t *testing.T, repo, metaDir string, files map[string]string) {
	t.Helper()
	git := gitdiff.NewClient(repo)
	head, err := git.CommitHash(context.Background(), "HEAD")
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	hashes := make(map[string]string, len(files))
	for name, content := range files {
		hashes[name] = change.Hash(content)
	}
	if err := SaveMetadata(metaDir, NewMetadata(head, hashes)); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}
}

func newTestOrchestrator(repo, metaDir string, updater ComponentUpdater, owners map[string][]string) *Orchestrator {
	cfg := Config{RepoPath: repo, MetadataDir: metaDir}
	return NewOrchestrator(cfg, gitdiff.NewClient(repo), updater, owners)
}

func TestRunNoChangesIsIdempotent(t *testing.T) {
	files := map[string]string{"src/a.py": "def foo(): pass\n"}
	repo := initRepo(t, files)
	metaDir := t.TempDir()
	seedMetadata(t, repo, metaDir, files)

	before, err := os.ReadFile(filepath.Join(metaDir, MetadataFile))
	if err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(repo, metaDir, &mockUpdater{}, nil)
	for i := 0; i < 2; i++ {
		res, err := o.Run(t.Context())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if res.Mode != ModeNoChanges {
			t.Fatalf("run %d: mode = %s, want no_changes", i, res.Mode)
		}
	}

	after, err := os.ReadFile(filepath.Join(metaDir, MetadataFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("no-change runs must leave metadata byte-identical")
	}
}

func TestRunMissingMetadataFallsBackToFull(t *testing.T) {
	repo := initRepo(t, map[string]string{"src/a.py": "def foo(): pass\n"})

	o := newTestOrchestrator(repo, t.TempDir(), &mockUpdater{}, nil)
	res, err := o.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFull {
		t.Fatalf("mode = %s, want full", res.Mode)
	}
	if res.CurrentCommit == "" {
		t.Fatal("current commit should still be resolved")
	}
}

func TestRunLegacyMetadataFallsBackToFull(t *testing.T) {
	repo := initRepo(t, map[string]string{"src/a.py": "def foo(): pass\n"})
	metaDir := t.TempDir()

	git := gitdiff.NewClient(repo)
	head, err := git.CommitHash(context.Background(), "HEAD")
	if err != nil {
		t.Fatal(err)
	}
	// Old head so the commit comparison cannot short-circuit.
	writeFile(t, repo, "src/b.py", "def bar(): pass\n")
	commitAll(t, repo, "add b")

	legacy := []byte(`{"commit_hash": "` + head + `", "version": "0.9.1"}`)
	if err := os.WriteFile(filepath.Join(metaDir, LegacyVersionFile), legacy, 0644); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(repo, metaDir, &mockUpdater{}, nil)
	res, err := o.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFull || res.FallbackReason == "" {
		t.Fatalf("legacy metadata should force a full run: %+v", res)
	}
}

func TestRunRewriteThresholdFallsBackToFull(t *testing.T) {
	files := map[string]string{
		"src/a.py": "def a(): pass\n",
		"src/b.py": "def b(): pass\n",
		"src/c.py": "def c(): pass\n",
		"src/d.py": "def d(): pass\n",
	}
	repo := initRepo(t, files)
	metaDir := t.TempDir()
	seedMetadata(t, repo, metaDir, files)

	// 3 of 4 known files change: ratio 0.75 exceeds the 0.5 default.
	writeFile(t, repo, "src/a.py", "def a(x): pass\n")
	writeFile(t, repo, "src/b.py", "def b(x): pass\n")
	writeFile(t, repo, "src/c.py", "def c(x): pass\n")
	commitAll(t, repo, "large rewrite")

	updater := &mockUpdater{}
	o := newTestOrchestrator(repo, metaDir, updater, nil)
	res, err := o.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFull {
		t.Fatalf("mode = %s, want full", res.Mode)
	}
	if len(res.Changes) != 0 || len(updater.reanalyzed) != 0 {
		t.Fatal("full fallback must skip per-file classification")
	}
}

func TestRunIncrementalStructuralChange(t *testing.T) {
	files := map[string]string{
		"src/a.py": "def foo(): pass\n",
		"src/b.py": "def bar(): pass\n",
	}
	repo := initRepo(t, files)
	metaDir := t.TempDir()
	seedMetadata(t, repo, metaDir, files)

	writeFile(t, repo, "src/a.py", "def foo(x): pass\n")
	commitAll(t, repo, "change signature")

	updater := &mockUpdater{}
	owners := map[string][]string{"src/a.py": {"src.a"}, "src/b.py": {"src.b"}}
	o := newTestOrchestrator(repo, metaDir, updater, owners)

	res, err := o.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeIncremental {
		t.Fatalf("mode = %s, want incremental", res.Mode)
	}
	if res.Components["src.a"] != change.TypeStructural {
		t.Fatalf("components = %v", res.Components)
	}
	if len(updater.reanalyzed) != 1 || updater.reanalyzed[0] != "src.a" {
		t.Fatalf("reanalyzed = %v", updater.reanalyzed)
	}

	// The one-line signature edit shows up in the run's diff stats.
	st, ok := res.LineStats["src/a.py"]
	if !ok {
		t.Fatalf("line stats missing for src/a.py: %+v", res.LineStats)
	}
	if st.Hunks != 1 || st.Added != 1 || st.Deleted != 1 {
		t.Fatalf("line stats = %+v, want 1 hunk, +1/-1", st)
	}

	// Metadata rolled forward to the new commit and hash.
	meta, err := LoadMetadata(metaDir)
	if err != nil {
		t.Fatal(err)
	}
	if meta.CommitHash != res.CurrentCommit {
		t.Fatalf("metadata commit = %s, want %s", meta.CommitHash, res.CurrentCommit)
	}
	if meta.FileContentHashes["src/a.py"] != change.Hash("def foo(x): pass\n") {
		t.Fatal("hash snapshot not rolled forward")
	}

	// A second run with no repository change is a no-op.
	res2, err := o.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if res2.Mode != ModeNoChanges {
		t.Fatalf("second run mode = %s, want no_changes", res2.Mode)
	}
}

func TestRunDeletedFileFlagsEmptyComponent(t *testing.T) {
	files := map[string]string{
		"src/a.py": "def foo(): pass\n",
		"src/b.py": "def bar(): pass\n",
	}
	repo := initRepo(t, files)
	metaDir := t.TempDir()
	seedMetadata(t, repo, metaDir, files)

	if err := os.Remove(filepath.Join(repo, "src/a.py")); err != nil {
		t.Fatal(err)
	}
	commitAll(t, repo, "remove a")

	updater := &mockUpdater{remaining: 0}
	owners := map[string][]string{"src/a.py": {"src.a"}}
	o := newTestOrchestrator(repo, metaDir, updater, owners)

	res, err := o.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeIncremental {
		t.Fatalf("mode = %s", res.Mode)
	}
	if len(updater.removed) != 1 || updater.removed[0] != "src.a:src/a.py" {
		t.Fatalf("removed = %v", updater.removed)
	}
	if len(res.EmptyComponents) != 1 || res.EmptyComponents[0] != "src.a" {
		t.Fatalf("empty components = %v", res.EmptyComponents)
	}

	meta, err := LoadMetadata(metaDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, still := meta.FileContentHashes["src/a.py"]; still {
		t.Fatal("deleted file must drop out of the hash snapshot")
	}
}

func TestRunComponentFailureLeavesRunComplete(t *testing.T) {
	files := map[string]string{
		"src/a.py": "def foo(): pass\n",
		"src/b.py": "def bar(): pass\n",
		"src/c.py": "def baz(): pass\n",
		"src/d.py": "def qux(): pass\n",
	}
	repo := initRepo(t, files)
	metaDir := t.TempDir()
	seedMetadata(t, repo, metaDir, files)

	writeFile(t, repo, "src/a.py", "def foo(x): pass\n")
	writeFile(t, repo, "src/b.py", "def bar(x): pass\n")
	commitAll(t, repo, "two structural changes")

	updater := &mockUpdater{failingName: "src.a"}
	owners := map[string][]string{"src/a.py": {"src.a"}, "src/b.py": {"src.b"}}
	o := newTestOrchestrator(repo, metaDir, updater, owners)

	res, err := o.Run(t.Context())
	if err != nil {
		t.Fatalf("component failure must not fail the run: %v", err)
	}
	if len(res.StaleComponents) != 1 || res.StaleComponents[0] != "src.a" {
		t.Fatalf("stale components = %v", res.StaleComponents)
	}
	if len(updater.reanalyzed) != 1 || updater.reanalyzed[0] != "src.b" {
		t.Fatalf("other components must still update: %v", updater.reanalyzed)
	}

	// Metadata still persisted for the analyzed commit.
	meta, err := LoadMetadata(metaDir)
	if err != nil {
		t.Fatal(err)
	}
	if meta.CommitHash != res.CurrentCommit {
		t.Fatal("metadata must persist despite component failure")
	}
}

func TestRunRenameIsCosmeticMove(t *testing.T) {
	files := map[string]string{
		"src/a.py": "def foo(): pass\n",
		"src/b.py": "def bar(): pass\n",
		"src/c.py": "def baz(): pass\n",
	}
	repo := initRepo(t, files)
	metaDir := t.TempDir()
	seedMetadata(t, repo, metaDir, files)

	gitRun(t, repo, "mv", "src/a.py", "src/moved.py")
	commitAll(t, repo, "rename a")

	updater := &mockUpdater{}
	owners := map[string][]string{"src/a.py": {"src.a"}}
	o := newTestOrchestrator(repo, metaDir, updater, owners)

	res, err := o.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeIncremental {
		t.Fatalf("mode = %s", res.Mode)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("rename should be one classified change: %+v", res.Changes)
	}
	cc := res.Changes[0]
	if !cc.IsMove || cc.ChangeType != change.TypeCosmetic {
		t.Fatalf("unchanged rename should be a cosmetic move: %+v", cc)
	}
	if cc.FilePath != "src/moved.py" || cc.OldPath != "src/a.py" {
		t.Fatalf("move paths: %+v", cc)
	}
	if _, ok := res.LineStats["src/moved.py"]; ok {
		t.Fatal("moves must not carry diff line stats")
	}

	meta, err := LoadMetadata(metaDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, stale := meta.FileContentHashes["src/a.py"]; stale {
		t.Fatal("old path must leave the hash snapshot")
	}
	if meta.FileContentHashes["src/moved.py"] != change.Hash("def foo(): pass\n") {
		t.Fatal("new path must enter the hash snapshot")
	}
}
