// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/codescope/internal/lang"
)

// javaClient wraps the base client with jdtls-specific handling.
//
// jdtls needs an explicit heap size for large repos, an isolated -data
// workspace directory per run, and time to import the project: it
// answers initialize immediately but call-hierarchy results are empty
// until its language/status notifications report ServiceReady.
type javaClient struct {
	*baseClient

	dataDir string
	ready   chan struct{}
}

func newJavaClient(cfg lang.ServerConfig, rootPath string, opts Options) *javaClient {
	c := &javaClient{ready: make(chan struct{})}

	heapMB := opts.JavaHeapMB
	if heapMB <= 0 {
		heapMB = 2048
	}
	dataDir, err := os.MkdirTemp("", "codescope-jdtls-*")
	if err != nil {
		// Fall back to letting jdtls pick its default workspace.
		slog.Warn("failed to create jdtls data dir, using server default",
			slog.String("error", err.Error()))
	} else {
		c.dataDir = dataDir
	}

	shaped := lang.ServerConfig{
		Language:              cfg.Language,
		Command:               cfg.Command,
		Suffixes:              cfg.Suffixes,
		RootFiles:             cfg.RootFiles,
		LanguageID:            cfg.LanguageID,
		InitializationOptions: cfg.InitializationOptions,
	}
	shaped.Args = append(shaped.Args, cfg.Args...)
	shaped.Args = append(shaped.Args, fmt.Sprintf("--jvm-arg=-Xmx%dm", heapMB))
	if c.dataDir != "" {
		shaped.Args = append(shaped.Args, "-data", c.dataDir)
	}

	c.baseClient = newBaseClient(shaped, rootPath, opts)
	c.bootstrap = c.waitForImport
	c.onNotification = c.observeStatus
	c.closeHook = func() {
		if c.dataDir != "" {
			_ = os.RemoveAll(c.dataDir)
		}
	}
	return c
}

// observeStatus watches jdtls language/status notifications for the
// ServiceReady marker.
func (c *javaClient) observeStatus(method string, params json.RawMessage) {
	if method != "language/status" {
		return
	}
	var p LanguageStatusParams
	if json.Unmarshal(params, &p) != nil {
		return
	}
	slog.Debug("jdtls status",
		slog.String("type", p.Type),
		slog.String("message", p.Message))
	if p.Type == "ServiceReady" {
		select {
		case <-c.ready:
		default:
			close(c.ready)
		}
	}
}

// waitForImport blocks until jdtls reports ServiceReady or the import
// timeout passes. Timing out is non-fatal: analysis proceeds with
// whatever the server has indexed, which degrades gracefully to fewer
// call edges.
func (c *javaClient) waitForImport(ctx context.Context) error {
	timeout := c.opts.JavaImportTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	select {
	case <-c.ready:
		slog.Info("jdtls project import complete")
		return nil
	case <-time.After(timeout):
		slog.Warn("jdtls project import did not complete in time, continuing with partial index",
			slog.Duration("waited", timeout))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
