// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter. Both delegate to whatever providers
// are installed globally, so telemetry.Init may run after import.
var (
	tracer = otel.Tracer("lintrun.lint")
	meter  = otel.Meter("lintrun.lint")
)

var (
	invocationLatency metric.Float64Histogram
	invocationTotal   metric.Int64Counter
	runIssues         metric.Int64Gauge
	ruleIssues        metric.Int64Gauge
	blockingIssues    metric.Int64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		invocationLatency, err = meter.Float64Histogram(
			"lintrun_invocation_duration_seconds",
			metric.WithDescription("Duration of linter invocations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		invocationTotal, err = meter.Int64Counter(
			"lintrun_invocations_total",
			metric.WithDescription("Total number of linter invocations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runIssues, err = meter.Int64Gauge(
			"lintrun_issues",
			metric.WithDescription("Issues in the most recent full report"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ruleIssues, err = meter.Int64Gauge(
			"lintrun_rule_issues",
			metric.WithDescription("Issues per rule in the most recent statistics summary"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		blockingIssues, err = meter.Int64Gauge(
			"lintrun_blocking_issues",
			metric.WithDescription("Issues matching the blocking policy in the most recent run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates the parent span for a full run.
func startRunSpan(ctx context.Context, runID string, config *LinterConfig) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("lint.run_id", runID),
			attribute.String("lint.command", config.Command),
			attribute.StringSlice("lint.targets", config.Targets),
		),
	)
}

// startInvocationSpan creates a span for one linter process.
func startInvocationSpan(ctx context.Context, mode Mode, output string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.invoke",
		trace.WithAttributes(
			attribute.String("lint.mode", string(mode)),
			attribute.String("lint.output_file", output),
		),
	)
}

// endInvocationSpan records the outcome on an invocation span.
func endInvocationSpan(span trace.Span, inv *Invocation, err error) {
	if inv != nil {
		span.SetAttributes(attribute.Int("lint.exit_code", inv.ExitCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// setRunSpanResult sets the result attributes on a run span.
func setRunSpanResult(span trace.Span, issues, blocking int, exitCode int) {
	span.SetAttributes(
		attribute.Int("lint.issue_count", issues),
		attribute.Int("lint.blocking_count", blocking),
		attribute.Int("lint.exit_code", exitCode),
	)
}

// recordInvocationMetrics records metrics for one linter process.
func recordInvocationMetrics(ctx context.Context, mode Mode, duration time.Duration, exitCode int, started bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.Bool("started", started),
		attribute.Int("exit_code", exitCode),
	)
	invocationLatency.Record(ctx, duration.Seconds(), attrs)
	invocationTotal.Add(ctx, 1, attrs)
}

// recordReportMetrics records the gauges describing the latest report.
func recordReportMetrics(ctx context.Context, report *Report, blocking int) {
	if report == nil {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	runIssues.Record(ctx, int64(len(report.Issues)))
	blockingIssues.Record(ctx, int64(blocking))
	for rule, count := range report.CountByRule() {
		ruleIssues.Record(ctx, int64(count), metric.WithAttributes(
			attribute.String("rule", rule),
		))
	}
}
