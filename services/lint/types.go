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
	"sort"
	"strconv"
	"time"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents the severity level of a flake8 diagnostic.
type Severity int

const (
	// SeverityInfo covers docstring, naming and other advisory plugins.
	SeverityInfo Severity = iota

	// SeverityWarning covers pycodestyle and complexity findings.
	SeverityWarning

	// SeverityError covers syntax errors and pyflakes findings.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SeverityForRule maps a flake8 rule code to a default severity.
//
// Description:
//
//	flake8 has no severity field; the code prefix is the only signal.
//	E9xx are syntax/IO errors raised by pycodestyle and F are pyflakes
//	findings, both of which indicate code that will not run as written.
//
// Inputs:
//
//	code - Rule code such as "E501" or "F401"
//
// Outputs:
//
//	Severity - The default severity for the code
func SeverityForRule(code string) Severity {
	if code == "" {
		return SeverityWarning
	}
	if len(code) >= 2 && code[:2] == "E9" {
		return SeverityError
	}
	switch code[0] {
	case 'F':
		return SeverityError
	case 'E', 'W', 'C':
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// =============================================================================
// MODE
// =============================================================================

// Mode selects how flake8 is invoked.
type Mode string

const (
	// ModeFullReport writes one line per diagnostic.
	ModeFullReport Mode = "full"

	// ModeSummary suppresses per-diagnostic output and writes statistics.
	ModeSummary Mode = "summary"
)

// =============================================================================
// ISSUE
// =============================================================================

// Issue is one diagnostic line from the full report.
//
// Thread Safety: Immutable after creation.
type Issue struct {
	// File is the path as flake8 printed it.
	File string `json:"file"`

	// Line is the 1-indexed line number.
	Line int `json:"line"`

	// Column is the 1-indexed column number.
	Column int `json:"column"`

	// Rule is the flake8 code (e.g., "E501", "F401").
	Rule string `json:"rule"`

	// Message is the text after the code.
	Message string `json:"message"`

	// Severity is derived from the rule code.
	Severity Severity `json:"severity"`
}

// Location returns a formatted location string (file:line:col).
func (i *Issue) Location() string {
	return i.File + ":" + strconv.Itoa(i.Line) + ":" + strconv.Itoa(i.Column)
}

// String renders the issue in flake8's default format.
func (i *Issue) String() string {
	return i.Location() + ": " + i.Rule + " " + i.Message
}

// =============================================================================
// STATISTIC
// =============================================================================

// Statistic is one line of flake8 --statistics output.
type Statistic struct {
	// Rule is the flake8 code.
	Rule string `json:"rule"`

	// Count is how many times the rule fired.
	Count int `json:"count"`

	// Message is the text of the first occurrence.
	Message string `json:"message"`
}

// =============================================================================
// REPORT
// =============================================================================

// Report is the parsed content of both output artifacts.
type Report struct {
	// Issues are the diagnostics from the full report file.
	Issues []Issue `json:"issues"`

	// Statistics are the per-rule counts from the summary file.
	Statistics []Statistic `json:"statistics"`

	// DeclaredTotal is the trailing total printed by --count, or -1 when
	// the summary carries no total line.
	DeclaredTotal int `json:"declared_total"`
}

// StatisticsTotal returns the sum of all per-rule counts.
func (r *Report) StatisticsTotal() int {
	total := 0
	for _, s := range r.Statistics {
		total += s.Count
	}
	return total
}

// DistinctIssueCount returns the number of distinct diagnostic lines.
func (r *Report) DistinctIssueCount() int {
	seen := make(map[string]struct{}, len(r.Issues))
	for i := range r.Issues {
		seen[r.Issues[i].String()] = struct{}{}
	}
	return len(seen)
}

// CountByRule returns the number of issues per rule code.
func (r *Report) CountByRule() map[string]int {
	counts := make(map[string]int)
	for _, s := range r.Statistics {
		counts[s.Rule] += s.Count
	}
	return counts
}

// CountBySeverity returns the number of issues per severity.
func (r *Report) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}

// Rules returns the rule codes present in the statistics, sorted.
func (r *Report) Rules() []string {
	rules := make([]string, 0, len(r.Statistics))
	for _, s := range r.Statistics {
		rules = append(rules, s.Rule)
	}
	sort.Strings(rules)
	return rules
}

// =============================================================================
// INVOCATION
// =============================================================================

// Invocation records a single flake8 process execution.
type Invocation struct {
	// Mode is the invocation mode.
	Mode Mode `json:"mode"`

	// Command is the resolved executable.
	Command string `json:"command"`

	// Args are the arguments passed to the executable.
	Args []string `json:"args"`

	// OutputFile is the artifact written through --output-file.
	OutputFile string `json:"output_file"`

	// ExitCode is the process exit code. flake8 uses 1 for findings.
	ExitCode int `json:"exit_code"`

	// Stdout is anything flake8 printed despite --output-file.
	Stdout string `json:"stdout,omitempty"`

	// Stderr holds flake8's own error messages.
	Stderr string `json:"stderr,omitempty"`

	// Duration is the wall time of the process.
	Duration time.Duration `json:"duration"`
}

// FoundIssues reports whether flake8 signalled findings.
func (i *Invocation) FoundIssues() bool {
	return i.ExitCode == 1
}

// ToolError reports whether flake8 signalled a usage or config error.
func (i *Invocation) ToolError() bool {
	return i.ExitCode > 1 || i.ExitCode < 0
}

// =============================================================================
// RUN RESULT
// =============================================================================

// RunResult is the outcome of a complete three-step run.
//
// Thread Safety: Immutable after creation by the runner.
type RunResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// StartedAt is when cleanup began.
	StartedAt time.Time `json:"started_at"`

	// Duration covers all three steps and parsing.
	Duration time.Duration `json:"duration"`

	// Full is the full-report invocation.
	Full *Invocation `json:"full"`

	// Summary is the statistics invocation.
	Summary *Invocation `json:"summary"`

	// Report is the parsed content of both artifacts.
	// Nil when an artifact could not be parsed.
	Report *Report `json:"report,omitempty"`

	// Blocking are the issues that matched the policy's BlockOn list.
	Blocking []Issue `json:"blocking,omitempty"`
}

// ExitCode returns the exit code of the last invocation, which is what
// a shell script running the same steps would exit with.
func (r *RunResult) ExitCode() int {
	if r.Summary != nil {
		return r.Summary.ExitCode
	}
	if r.Full != nil {
		return r.Full.ExitCode
	}
	return 0
}

// IssueCount returns the number of issues in the full report.
func (r *RunResult) IssueCount() int {
	if r.Report == nil {
		return 0
	}
	return len(r.Report.Issues)
}
