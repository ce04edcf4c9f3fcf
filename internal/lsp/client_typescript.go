// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/codescope/internal/lang"
)

// typeScriptClient wraps the base client with tsserver warmup.
//
// typescript-language-server reports itself initialized before tsserver
// has loaded the project, and early requests silently return empty
// results. The bootstrap opens a few representative files, waits for a
// settle delay, and probes with an empty workspace/symbol query before
// declaring the workspace ready.
type typeScriptClient struct {
	*baseClient
}

func newTypeScriptClient(cfg lang.ServerConfig, rootPath string, opts Options) *typeScriptClient {
	c := &typeScriptClient{baseClient: newBaseClient(cfg, rootPath, opts)}
	c.bootstrap = c.warmup
	return c
}

// warmup opens representative files and probes workspace readiness.
func (c *typeScriptClient) warmup(ctx context.Context) error {
	files := c.representativeFiles()
	for _, path := range files {
		content, err := os.ReadFile(filepath.Join(c.rootPath, filepath.FromSlash(path)))
		if err != nil {
			continue
		}
		_ = c.server.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
			TextDocument: TextDocumentItem{
				URI:        PathToURI(filepath.Join(c.rootPath, filepath.FromSlash(path))),
				LanguageID: c.cfg.LanguageID,
				Version:    1,
				Text:       string(content),
			},
		})
	}

	select {
	case <-time.After(c.opts.TSWarmupDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	// Probe twice: the first empty query sometimes lands while tsserver
	// is still indexing.
	if err := c.probe(ctx); err != nil {
		slog.Debug("tsserver warmup probe failed, retrying",
			slog.String("error", err.Error()))
		select {
		case <-time.After(c.opts.TSWarmupDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := c.probe(ctx); err != nil {
			slog.Warn("tsserver warmup probe failed twice, continuing anyway",
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// probe issues an empty workspace/symbol query as a readiness check.
func (c *typeScriptClient) probe(ctx context.Context) error {
	if !c.capabilities.HasWorkspaceSymbolProvider() {
		return nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	_, err := c.server.Request(reqCtx, "workspace/symbol", WorkspaceSymbolParams{Query: ""})
	recordRequest(ctx, "workspace/symbol", c.cfg.Language, time.Since(start), err == nil)
	return err
}

// representativeFiles picks up to TSRepresentativeFiles source files,
// preferring entry-point names so tsserver loads the project graph.
func (c *typeScriptClient) representativeFiles() []string {
	limit := c.opts.TSRepresentativeFiles
	if limit <= 0 {
		limit = 3
	}

	var preferred, rest []string
	_ = filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == "node_modules" || name == ".git" || name == "dist" || name == "build" {
				return filepath.SkipDir
			}
			return nil
		}
		if len(preferred)+len(rest) >= limit*4 {
			return filepath.SkipAll
		}
		matched := false
		for _, suffix := range c.cfg.Suffixes {
			if strings.HasSuffix(path, suffix) {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
		rel, err := filepath.Rel(c.rootPath, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		base := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if base == "index" || base == "main" || base == "app" {
			preferred = append(preferred, rel)
		} else {
			rest = append(rest, rel)
		}
		return nil
	})

	files := append(preferred, rest...)
	if len(files) > limit {
		files = files[:limit]
	}
	return files
}
