// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func runWatch(cmd *cobra.Command, args []string) {
	repo := repoAbs()
	ctx := cmd.Context()

	debounce, err := time.ParseDuration(debounceFlag)
	if err != nil || debounce <= 0 {
		fatalf("invalid --debounce %q", debounceFlag)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fatalf("create watcher: %v", err)
	}
	defer watcher.Close()

	// Watching .git/HEAD and the refs log catches commits, merges, and
	// checkouts without watching the whole tree. The incremental run
	// itself diffs commits, so working-tree churn is irrelevant here.
	gitDir := filepath.Join(repo, ".git")
	for _, target := range []string{gitDir, filepath.Join(gitDir, "refs", "heads")} {
		if err := watcher.Add(target); err != nil {
			fatalf("watch %s: %v", target, err)
		}
	}
	fmt.Printf("watching %s (debounce %s)\n", repo, debounce)

	var timer *time.Timer
	fired := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevantGitEvent(event) {
				continue
			}
			slog.Debug("git change observed", slog.String("path", event.Name))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fired <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))

		case <-fired:
			if err := incrementalRun(ctx); err != nil {
				slog.Error("triggered re-analysis failed",
					slog.String("error", err.Error()))
			}
			if watchOnceFlag {
				return
			}
		}
	}
}

// relevantGitEvent reports whether an fsnotify event indicates the
// checked-out commit may have moved.
func relevantGitEvent(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	return base == "HEAD" || base == "ORIG_HEAD" || filepath.Base(filepath.Dir(event.Name)) == "heads"
}
