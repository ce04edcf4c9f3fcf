// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for LSP operations.
var (
	tracer = otel.Tracer("codescope.lsp")
	meter  = otel.Meter("codescope.lsp")
)

// Metrics for LSP operations.
var (
	requestLatency metric.Float64Histogram
	fileAnalyses   metric.Int64Counter
	fileFailures   metric.Int64Counter
	serverSpawns   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestLatency, err = meter.Float64Histogram(
			"lsp_request_duration_seconds",
			metric.WithDescription("Duration of LSP requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileAnalyses, err = meter.Int64Counter(
			"lsp_file_analyses_total",
			metric.WithDescription("Total files analyzed per language"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileFailures, err = meter.Int64Counter(
			"lsp_file_failures_total",
			metric.WithDescription("Per-file analysis failures (skipped, non-fatal)"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		serverSpawns, err = meter.Int64Counter(
			"lsp_server_spawns_total",
			metric.WithDescription("Total number of LSP server spawns"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalysisSpan creates a span covering one language's analysis.
func startAnalysisSpan(ctx context.Context, language string, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Client.BuildStaticAnalysis",
		trace.WithAttributes(
			attribute.String("lsp.language", language),
			attribute.Int("lsp.file_count", fileCount),
		),
	)
}

// recordRequest records latency for one LSP request.
func recordRequest(ctx context.Context, method, language string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	requestLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("language", language),
		attribute.Bool("success", success),
	))
}

// recordFileAnalyzed counts one analyzed or failed file.
func recordFileAnalyzed(ctx context.Context, language string, failed bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("language", language))
	if failed {
		fileFailures.Add(ctx, 1, attrs)
		return
	}
	fileAnalyses.Add(ctx, 1, attrs)
}

// recordServerSpawn records a server spawn attempt.
func recordServerSpawn(ctx context.Context, language string, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	serverSpawns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	))
}
