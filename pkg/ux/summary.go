// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RuleCount is one row of the per-rule breakdown.
type RuleCount struct {
	Rule     string
	Count    int
	Message  string
	Severity string // "error", "warning" or "info"
}

// RunSummary is everything the run summary displays.
type RunSummary struct {
	RunID       string
	Duration    time.Duration
	Issues      int
	Blocking    int
	ExitCode    int
	Rules       []RuleCount
	ReportPath  string
	SummaryPath string
}

// Summary prints the outcome of a lint run.
//
// Description:
//
//	Styled output shows a per-rule breakdown colored by severity, a status
//	line and a box naming both artifacts. Plain output is stable,
//	tab-separated and meant for scripts:
//
//	    RULE	<count>	<code>	<message>
//	    SUMMARY	issues=<n>	blocking=<n>	exit_code=<n>	duration_ms=<n>
//	    ARTIFACTS	<report>	<summary>
func (p *Printer) Summary(s RunSummary) {
	if !p.styled {
		for _, r := range s.Rules {
			fmt.Fprintf(p.w, "RULE\t%d\t%s\t%s\n", r.Count, r.Rule, r.Message)
		}
		fmt.Fprintf(p.w, "SUMMARY\tissues=%d\tblocking=%d\texit_code=%d\tduration_ms=%d\n",
			s.Issues, s.Blocking, s.ExitCode, s.Duration.Milliseconds())
		fmt.Fprintf(p.w, "ARTIFACTS\t%s\t%s\n", s.ReportPath, s.SummaryPath)
		return
	}

	if len(s.Rules) > 0 {
		fmt.Fprintln(p.w, Styles.Title.Render("Issues by rule"))
		for _, r := range s.Rules {
			count := severityStyle(r.Severity).Render(fmt.Sprintf("%6d", r.Count))
			fmt.Fprintf(p.w, "%s  %s  %s\n", count, Styles.Bold.Render(r.Rule), Styles.Muted.Render(r.Message))
		}
		fmt.Fprintln(p.w)
	}

	switch {
	case s.Blocking > 0:
		p.Error(fmt.Sprintf("%d issues, %d blocking", s.Issues, s.Blocking))
	case s.Issues > 0:
		p.Warning(fmt.Sprintf("%d issues", s.Issues))
	default:
		p.Success("No issues")
	}

	p.Box("Artifacts", fmt.Sprintf("report   %s\nsummary  %s\n%s",
		s.ReportPath, s.SummaryPath,
		Styles.Muted.Render(fmt.Sprintf("run %s in %s, exit %d", shortID(s.RunID), s.Duration.Round(time.Millisecond), s.ExitCode)),
	))
}

// HistoryRow is one recorded run in the history listing.
type HistoryRow struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Issues    int
	Blocking  int
	ExitCode  int
	TopRules  []string
}

// History prints recorded runs, newest first.
func (p *Printer) History(rows []HistoryRow) {
	if len(rows) == 0 {
		p.Info("No recorded runs")
		return
	}

	headers := []string{"RUN", "STARTED", "DURATION", "ISSUES", "BLOCKING", "EXIT", "TOP RULES"}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			shortID(r.RunID),
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(r.Issues),
			strconv.Itoa(r.Blocking),
			strconv.Itoa(r.ExitCode),
			strings.Join(r.TopRules, ","),
		})
	}

	if !p.styled {
		fmt.Fprintln(p.w, strings.Join(headers, "\t"))
		for _, row := range cells {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorTealDeep)).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Inherit(Styles.Title)
			}
			if col == 4 && row >= 0 && row < len(rows) && rows[row].Blocking > 0 {
				return style.Inherit(Styles.Error)
			}
			return style
		})
	fmt.Fprintln(p.w, t.Render())
}

func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case "error":
		return Styles.Error
	case "warning":
		return Styles.Warning
	default:
		return Styles.Muted
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
