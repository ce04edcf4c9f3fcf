// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Updater applies per-component incremental actions against the
// engine's analysis state. It satisfies the orchestrator's
// ComponentUpdater contract.
//
// Thread Safety: safe for concurrent use, though the orchestrator
// applies updates sequentially.
type Updater struct {
	engine *Engine

	mu sync.Mutex

	// componentFiles tracks file ownership, seeded from the prior
	// analysis and decremented as deletions arrive.
	componentFiles map[string]map[string]bool

	// componentLang maps each component to the language that owns it.
	componentLang map[string]string

	// pendingDescriptions collects components whose descriptions must
	// regenerate. The description layer itself lives downstream.
	pendingDescriptions map[string]bool
}

// NewUpdater builds an updater over the engine's current aggregation
// state.
func NewUpdater(e *Engine) *Updater {
	u := &Updater{
		engine:              e,
		componentFiles:      make(map[string]map[string]bool),
		componentLang:       make(map[string]string),
		pendingDescriptions: make(map[string]bool),
	}
	for _, language := range e.agg.Languages() {
		for file, components := range e.agg.FilesOwnedBy(language) {
			for _, component := range components {
				if u.componentFiles[component] == nil {
					u.componentFiles[component] = make(map[string]bool)
				}
				u.componentFiles[component][file] = true
				u.componentLang[component] = language
			}
		}
	}
	return u
}

// Owners returns the file-to-components map across all languages, the
// shape the classifier consumes.
func (u *Updater) Owners() map[string][]string {
	u.mu.Lock()
	defer u.mu.Unlock()

	owners := make(map[string][]string)
	for component, files := range u.componentFiles {
		for file := range files {
			owners[file] = append(owners[file], component)
		}
	}
	for file := range owners {
		sort.Strings(owners[file])
	}
	return owners
}

// RefreshDescription queues a component for description regeneration.
// Internal changes never re-run the aggregation pipeline.
func (u *Updater) RefreshDescription(_ context.Context, component string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, known := u.componentLang[component]; !known {
		return fmt.Errorf("unknown component %q", component)
	}
	u.pendingDescriptions[component] = true
	slog.Debug("component queued for description refresh",
		slog.String("component", component))
	return nil
}

// PendingDescriptions lists the components queued by
// RefreshDescription, sorted.
func (u *Updater) PendingDescriptions() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.pendingDescriptions))
	for component := range u.pendingDescriptions {
		out = append(out, component)
	}
	sort.Strings(out)
	return out
}

// Reanalyze re-runs full analysis for the language owning the
// component. The aggregation store's overwrite semantics make this a
// clean slot replacement, so sibling components of the same language
// are refreshed with it.
func (u *Updater) Reanalyze(ctx context.Context, component string) error {
	u.mu.Lock()
	language, known := u.componentLang[component]
	u.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown component %q", component)
	}
	return u.engine.ReanalyzeLanguage(ctx, language)
}

// RemoveFile drops a deleted file from its component's ownership set
// and reports how many files remain. The graph slots themselves are
// rebuilt on the next structural re-analysis; ownership is what the
// orchestrator needs immediately to flag empty components.
func (u *Updater) RemoveFile(_ context.Context, component, filePath string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	files, known := u.componentFiles[component]
	if !known {
		return 0, fmt.Errorf("unknown component %q", component)
	}
	delete(files, filePath)
	return len(files), nil
}
