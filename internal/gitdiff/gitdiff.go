// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gitdiff provides the git-backed change feed: changed-path
// lists between two refs, file content at an older commit, and hunk
// statistics.
package gitdiff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrNotARepository signals the path is not inside a git work tree.
var ErrNotARepository = errors.New("not a git repository")

// ErrNoSuchObject signals a ref or ref:path that git cannot resolve.
var ErrNoSuchObject = errors.New("git object not found")

// Rename is one rename reported by git's own similarity detection.
type Rename struct {
	// OldPath is the repo-relative pre-rename path.
	OldPath string `json:"old_path"`

	// NewPath is the repo-relative post-rename path.
	NewPath string `json:"new_path"`
}

// Changes lists the paths differing between two refs.
type Changes struct {
	// Added are paths present only in the newer ref.
	Added []string `json:"added,omitempty"`

	// Modified are paths present in both refs with differing content.
	Modified []string `json:"modified,omitempty"`

	// Deleted are paths present only in the older ref.
	Deleted []string `json:"deleted,omitempty"`

	// Renamed are pairs git matched by similarity.
	Renamed []Rename `json:"renamed,omitempty"`
}

// Total is the number of changed paths, counting a rename once.
func (c *Changes) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted) + len(c.Renamed)
}

// HunkStats summarizes one file's diff.
type HunkStats struct {
	// Hunks is the number of change hunks.
	Hunks int `json:"hunks"`

	// Added is the count of added lines.
	Added int `json:"added"`

	// Deleted is the count of deleted lines.
	Deleted int `json:"deleted"`
}

// Client runs git against one repository.
//
// Thread Safety: safe for concurrent use; every call execs a fresh git
// process.
type Client struct {
	repoPath string
}

// NewClient creates a client rooted at repoPath.
func NewClient(repoPath string) *Client {
	return &Client{repoPath: repoPath}
}

// run executes git with the repo as working directory.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		switch {
		case strings.Contains(msg, "not a git repository"):
			return "", fmt.Errorf("%w: %s", ErrNotARepository, c.repoPath)
		case strings.Contains(msg, "does not exist"),
			strings.Contains(msg, "unknown revision"),
			strings.Contains(msg, "bad revision"),
			strings.Contains(msg, "exists on disk, but not in"):
			return "", fmt.Errorf("%w: git %s: %s", ErrNoSuchObject, strings.Join(args, " "), msg)
		default:
			return "", fmt.Errorf("git %s: %v: %s", strings.Join(args, " "), err, msg)
		}
	}
	return stdout.String(), nil
}

// CommitHash resolves a ref to its full commit hash.
func (c *Client) CommitHash(ctx context.Context, ref string) (string, error) {
	out, err := c.run(ctx, "rev-parse", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ChangedFiles lists paths differing between two refs with git's rename
// detection enabled.
func (c *Client) ChangedFiles(ctx context.Context, oldRef, newRef string) (*Changes, error) {
	out, err := c.run(ctx, "diff", "--name-status", "-M", oldRef, newRef)
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(out), nil
}

// Show returns a file's content at a ref.
func (c *Client) Show(ctx context.Context, ref, path string) (string, error) {
	return c.run(ctx, "show", ref+":"+path)
}

// Stats parses one file's diff between two refs into hunk statistics.
func (c *Client) Stats(ctx context.Context, oldRef, newRef, path string) (*HunkStats, error) {
	out, err := c.run(ctx, "diff", oldRef, newRef, "--", path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return &HunkStats{}, nil
	}

	fileDiff, err := diff.ParseFileDiff([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("parse diff for %s: %w", path, err)
	}

	stats := &HunkStats{Hunks: len(fileDiff.Hunks)}
	for _, hunk := range fileDiff.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				stats.Added++
			case strings.HasPrefix(line, "-"):
				stats.Deleted++
			}
		}
	}
	return stats, nil
}

// ParseNameStatus parses `git diff --name-status -M` output.
//
// Lines look like:
//
//	A	path
//	M	path
//	D	path
//	R100	old	new
func ParseNameStatus(out string) *Changes {
	changes := &Changes{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		switch {
		case status == "A":
			changes.Added = append(changes.Added, fields[1])
		case status == "M":
			changes.Modified = append(changes.Modified, fields[1])
		case status == "D":
			changes.Deleted = append(changes.Deleted, fields[1])
		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			changes.Renamed = append(changes.Renamed, Rename{OldPath: fields[1], NewPath: fields[2]})
		case strings.HasPrefix(status, "C") && len(fields) >= 3:
			// A copy leaves the old path intact; treat the copy as new.
			changes.Added = append(changes.Added, fields[2])
		}
	}
	return changes
}
