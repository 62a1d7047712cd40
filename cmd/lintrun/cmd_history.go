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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/lintrun/pkg/ux"
	"github.com/AleutianAI/lintrun/services/history"
)

// errHistoryDisabled is returned by history when no store is configured.
var errHistoryDisabled = errors.New("history is disabled: set history.dir or pass --history-dir")

const topRuleCount = 3

func (a *app) historyCommand() *cobra.Command {
	var (
		limit  int
		dir    string
		latest bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir != "" {
				a.cfg.History.Dir = dir
			}
			return a.runHistory(limit, latest)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&dir, "history-dir", "", "BadgerDB directory (overrides history.dir)")
	cmd.Flags().BoolVar(&latest, "latest", false, "show per-rule counts of the most recent run")
	return cmd
}

func (a *app) runHistory(limit int, latest bool) error {
	if a.cfg.History.Dir == "" {
		return &ExitError{Code: ExitToolError, Err: errHistoryDisabled}
	}

	hcfg := history.DefaultConfig(a.cfg.History.Dir)
	hcfg.Logger = a.logger.Slog().With(slog.String("component", "history"))
	store, err := history.Open(hcfg)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}
	defer store.Close()

	if latest {
		return a.showLatest(store)
	}

	records, err := store.List(limit)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	rows := make([]ux.HistoryRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, historyRow(rec))
	}
	a.printer.History(rows)
	return nil
}

func (a *app) showLatest(store *history.Store) error {
	rec, ok, err := store.Latest()
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}
	if !ok {
		a.printer.Info("no runs recorded")
		return nil
	}

	lines := []string{fmt.Sprintf("%s  %d issues, %d blocking, exit %d",
		rec.StartedAt.Local().Format(time.DateTime), rec.Total, rec.Blocking, rec.ExitCode)}
	for _, rule := range topRules(rec.ByRule, len(rec.ByRule)) {
		lines = append(lines, fmt.Sprintf("%-6s %d", rule, rec.ByRule[rule]))
	}
	a.printer.Box("run "+rec.RunID, strings.Join(lines, "\n"))
	return nil
}

func historyRow(rec history.Record) ux.HistoryRow {
	return ux.HistoryRow{
		RunID:     rec.RunID,
		StartedAt: rec.StartedAt,
		Duration:  time.Duration(rec.DurationMillis) * time.Millisecond,
		Issues:    rec.Total,
		Blocking:  rec.Blocking,
		ExitCode:  rec.ExitCode,
		TopRules:  topRules(rec.ByRule, topRuleCount),
	}
}

// topRules returns up to n rule codes by descending count, ties by code.
func topRules(byRule map[string]int, n int) []string {
	rules := make([]string, 0, len(byRule))
	for rule := range byRule {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		ci, cj := byRule[rules[i]], byRule[rules[j]]
		if ci != cj {
			return ci > cj
		}
		return rules[i] < rules[j]
	})
	if len(rules) > n {
		rules = rules[:n]
	}
	return rules
}
