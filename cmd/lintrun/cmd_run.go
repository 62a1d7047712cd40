// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/lintrun/cmd/lintrun/config"
	"github.com/AleutianAI/lintrun/pkg/ux"
	"github.com/AleutianAI/lintrun/services/history"
	"github.com/AleutianAI/lintrun/services/lint"
)

// runFlags override config file values for a single run.
type runFlags struct {
	exitMode    string
	metricsFile string
	outputDir   string
	historyDir  string
}

func (a *app) runCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Clean up, write the full report, then write the statistics summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(a.cfg); err != nil {
				return &ExitError{Code: ExitToolError, Err: err}
			}
			if err := a.startTelemetry(cmd.Context(), false); err != nil {
				return err
			}
			return a.runOnce(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&flags.exitMode, "exit-mode", "", "propagate, never or policy (overrides exit_mode)")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "directory for the report and summary files")
	cmd.Flags().StringVar(&flags.historyDir, "history-dir", "", "record the run in this BadgerDB directory")
	return cmd
}

func (f *runFlags) apply(cfg *config.LintrunConfig) error {
	if f.exitMode != "" {
		cfg.ExitMode = config.ExitMode(f.exitMode)
	}
	if f.metricsFile != "" {
		cfg.Telemetry.MetricsFile = f.metricsFile
	}
	if f.outputDir != "" {
		cfg.Outputs.Dir = f.outputDir
	}
	if f.historyDir != "" {
		cfg.History.Dir = f.historyDir
	}
	return config.Validate(cfg)
}

// runOnce performs one complete run and maps it to an exit code.
func (a *app) runOnce(ctx context.Context) error {
	runner := a.newRunner()

	// A missing flake8 must not cost the previous run's artifacts.
	if _, err := runner.Detect(); err != nil {
		a.printer.ErrorBox("lint run failed", err.Error())
		return &ExitError{Code: fatalExitCode(err), Err: err}
	}

	result, err := runner.Run(ctx)
	if err != nil {
		a.printer.ErrorBox("lint run failed", failureDetail(err))
		return &ExitError{Code: fatalExitCode(err), Err: err}
	}

	a.printer.Summary(runSummary(runner, result))
	a.recordHistory(result)

	if code := runExitCode(a.cfg.ExitMode, result); code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// failureDetail adds the failing command line when one is known.
func failureDetail(err error) string {
	var linterErr *lint.LinterError
	if errors.As(err, &linterErr) && len(linterErr.Args) > 0 {
		return err.Error() + "\ncommand: " + linterErr.CommandLine()
	}
	return err.Error()
}

// recordHistory saves the run when history is enabled. Failures are logged;
// history never changes the exit code.
func (a *app) recordHistory(result *lint.RunResult) {
	if a.cfg.History.Dir == "" {
		return
	}

	hcfg := history.DefaultConfig(a.cfg.History.Dir)
	hcfg.Logger = a.logger.Slog().With(slog.String("component", "history"))
	store, err := history.Open(hcfg)
	if err != nil {
		a.logger.Warn("History unavailable", slog.String("error", err.Error()))
		return
	}
	defer store.Close()

	if err := store.Save(history.NewRecord(result)); err != nil {
		a.logger.Warn("Could not record run", slog.String("error", err.Error()))
		return
	}
	if a.cfg.History.Keep > 0 {
		if removed, err := store.Prune(a.cfg.History.Keep); err != nil {
			a.logger.Warn("Could not prune history", slog.String("error", err.Error()))
		} else if removed > 0 {
			a.logger.Debug("Pruned history", slog.Int("removed", removed))
		}
	}
}

// runSummary converts a run result for display.
func runSummary(runner *lint.Runner, result *lint.RunResult) ux.RunSummary {
	summary := ux.RunSummary{
		RunID:       result.RunID,
		Duration:    result.Duration,
		Issues:      result.IssueCount(),
		Blocking:    len(result.Blocking),
		ExitCode:    result.ExitCode(),
		ReportPath:  runner.ReportPath(),
		SummaryPath: runner.SummaryPath(),
	}
	if result.Report == nil {
		return summary
	}

	policy := runner.Policy()
	for _, stat := range result.Report.Statistics {
		summary.Rules = append(summary.Rules, ux.RuleCount{
			Rule:     stat.Rule,
			Count:    stat.Count,
			Message:  stat.Message,
			Severity: policy.GetSeverity(stat.Rule).String(),
		})
	}
	sort.SliceStable(summary.Rules, func(i, j int) bool {
		return summary.Rules[i].Count > summary.Rules[j].Count
	})
	return summary
}

// describeInvocation summarizes one flake8 invocation for logs.
func describeInvocation(inv *lint.Invocation) string {
	if inv == nil {
		return "not run"
	}
	return fmt.Sprintf("%s exited %d in %s", inv.Mode, inv.ExitCode, inv.Duration.Round(time.Millisecond))
}
