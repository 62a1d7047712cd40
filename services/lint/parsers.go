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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// FULL REPORT PARSER
// =============================================================================

// diagnosticPattern matches flake8's default format:
//
//	%(path)s:%(row)d:%(col)d: %(code)s %(text)s
//
// The path group is greedy so Windows drive letters stay in the path.
var diagnosticPattern = regexp.MustCompile(`^(.+):(\d+):(\d+): ([A-Z]+[0-9]+)(?: (.*))?$`)

// ParseReport parses the full-report artifact.
//
// Description:
//
//	Each diagnostic line becomes an Issue. Lines that are not diagnostics
//	are skipped; flake8 emits those for show-source and count settings
//	that live in the user's config file, which this tool does not own.
//
// Inputs:
//
//	data - Raw content of the report file
//
// Outputs:
//
//	[]Issue - Parsed issues, in file order
//	error - Non-nil only if the data could not be scanned
func ParseReport(data []byte) ([]Issue, error) {
	var issues []Issue

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		issue, ok := parseDiagnostic(line)
		if !ok {
			continue
		}
		issues = append(issues, issue)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseOutput, err)
	}

	return issues, nil
}

func parseDiagnostic(line string) (Issue, bool) {
	m := diagnosticPattern.FindStringSubmatch(line)
	if m == nil {
		return Issue{}, false
	}
	row, err := strconv.Atoi(m[2])
	if err != nil {
		return Issue{}, false
	}
	col, err := strconv.Atoi(m[3])
	if err != nil {
		return Issue{}, false
	}
	return Issue{
		File:     m[1],
		Line:     row,
		Column:   col,
		Rule:     m[4],
		Message:  m[5],
		Severity: SeverityForRule(m[4]),
	}, true
}

// =============================================================================
// STATISTICS PARSER
// =============================================================================

// statisticPattern matches one --statistics line. flake8 left-aligns the
// count in a five character column.
var statisticPattern = regexp.MustCompile(`^(\d+)\s+([A-Z]+[0-9]+)(?: (.*))?$`)

var totalPattern = regexp.MustCompile(`^(\d+)$`)

// ParseStatistics parses the statistics artifact.
//
// Description:
//
//	Unlike the full report, the summary is produced with -qq so every
//	non-blank line must be a statistic or the trailing --count total.
//	Anything else is reported as ErrParseOutput.
//
// Inputs:
//
//	data - Raw content of the summary file
//
// Outputs:
//
//	[]Statistic - Per-rule counts in file order
//	int - The declared total, or -1 if none was printed
//	error - Non-nil if a line could not be parsed
func ParseStatistics(data []byte) ([]Statistic, int, error) {
	var stats []Statistic
	total := -1

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := totalPattern.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, -1, fmt.Errorf("%w: line %d: %v", ErrParseOutput, lineNo, err)
			}
			total = n
			continue
		}

		m := statisticPattern.FindStringSubmatch(line)
		if m == nil {
			return nil, -1, fmt.Errorf("%w: line %d: %q", ErrParseOutput, lineNo, line)
		}
		count, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, -1, fmt.Errorf("%w: line %d: %v", ErrParseOutput, lineNo, err)
		}
		stats = append(stats, Statistic{
			Rule:    m[2],
			Count:   count,
			Message: m[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, -1, fmt.Errorf("%w: %v", ErrParseOutput, err)
	}

	return stats, total, nil
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// ReadReport loads and parses both artifacts for a config.
//
// Description:
//
//	A missing artifact is treated as empty. flake8 does not create the
//	output file when it has nothing to write, which is the "no
//	violations" case.
//
// Inputs:
//
//	config - The linter config naming the artifacts
//
// Outputs:
//
//	*Report - The parsed report
//	error - Non-nil if a file could not be read or parsed
func ReadReport(config *LinterConfig) (*Report, error) {
	reportData, err := readArtifact(config.ReportPath())
	if err != nil {
		return nil, err
	}
	summaryData, err := readArtifact(config.SummaryPath())
	if err != nil {
		return nil, err
	}
	return ParseArtifacts(reportData, summaryData)
}

// ParseArtifacts parses in-memory copies of both artifacts.
func ParseArtifacts(reportData, summaryData []byte) (*Report, error) {
	issues, err := ParseReport(reportData)
	if err != nil {
		return nil, fmt.Errorf("parsing full report: %w", err)
	}
	stats, total, err := ParseStatistics(summaryData)
	if err != nil {
		return nil, fmt.Errorf("parsing statistics: %w", err)
	}
	return &Report{
		Issues:        issues,
		Statistics:    stats,
		DeclaredTotal: total,
	}, nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// =============================================================================
// CROSS CHECK
// =============================================================================

// CrossCheck verifies the summary against the full report.
//
// Description:
//
//	Both artifacts come from the same config and targets, so the sum of
//	the per-rule counts must equal the number of distinct diagnostic
//	lines. When --count added a total line, it must agree as well.
//
// Inputs:
//
//	report - Parsed artifacts
//
// Outputs:
//
//	error - *CrossCheckError (matching ErrCrossCheck) on mismatch
func CrossCheck(report *Report) error {
	if report == nil {
		return fmt.Errorf("%w: report must not be nil", ErrInvalidInput)
	}

	statsTotal := report.StatisticsTotal()
	distinct := report.DistinctIssueCount()
	if statsTotal != distinct {
		return &CrossCheckError{StatisticsTotal: statsTotal, ReportLines: distinct}
	}
	if report.DeclaredTotal >= 0 && report.DeclaredTotal != statsTotal {
		return &CrossCheckError{StatisticsTotal: report.DeclaredTotal, ReportLines: distinct}
	}
	return nil
}
