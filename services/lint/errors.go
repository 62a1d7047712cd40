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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the lint package.
var (
	// ErrLinterNotInstalled indicates the linter binary was not found in PATH.
	ErrLinterNotInstalled = errors.New("linter not installed")

	// ErrLinterTimeout indicates the linter exceeded its configured timeout.
	ErrLinterTimeout = errors.New("linter timeout")

	// ErrLinterFailed indicates the linter process could not be started.
	ErrLinterFailed = errors.New("linter execution failed")

	// ErrParseOutput indicates an artifact line did not match flake8's format.
	ErrParseOutput = errors.New("failed to parse linter output")

	// ErrCrossCheck indicates the statistics total disagrees with the report.
	ErrCrossCheck = errors.New("statistics do not match report")

	// ErrInvalidInput indicates invalid input to a lint function.
	ErrInvalidInput = errors.New("invalid input")
)

// LinterError describes a flake8 invocation that could not run to
// completion.
//
// # Description
//
// Carries the executable and arguments so a failure can be reproduced by
// hand. Mode is empty for errors that precede any invocation, such as a
// failed PATH lookup.
//
// Thread Safety: Immutable after creation.
type LinterError struct {
	// Linter is the executable that failed (e.g., "flake8").
	Linter string

	// Mode is the invocation mode that failed. Empty before any invocation.
	Mode Mode

	// Args are the arguments the invocation was started with.
	Args []string

	// Err is the underlying error.
	Err error

	// Output contains any stderr output from the linter.
	Output string
}

// Error implements the error interface.
func (e *LinterError) Error() string {
	prefix := e.Linter
	if e.Mode != "" {
		prefix = fmt.Sprintf("%s (%s)", e.Linter, e.Mode)
	}
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", prefix, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LinterError) Unwrap() error {
	return e.Err
}

// CommandLine returns the invocation as a shell-style line, or just the
// executable when no arguments were recorded.
func (e *LinterError) CommandLine() string {
	if len(e.Args) == 0 {
		return e.Linter
	}
	return e.Linter + " " + strings.Join(e.Args, " ")
}

// NewLinterError creates a new LinterError.
func NewLinterError(linter string, mode Mode, err error) *LinterError {
	return &LinterError{
		Linter: linter,
		Mode:   mode,
		Err:    err,
	}
}

// invocationError creates a LinterError for a started invocation.
func invocationError(inv *Invocation, err error) *LinterError {
	e := NewLinterError(inv.Command, inv.Mode, err)
	e.Args = append([]string(nil), inv.Args...)
	return e
}

// WithOutput returns a copy of the error with stderr output attached.
func (e *LinterError) WithOutput(output string) *LinterError {
	c := *e
	c.Output = output
	return &c
}

// CrossCheckError reports the two numbers that disagreed.
type CrossCheckError struct {
	// StatisticsTotal is the sum of per-rule counts in the summary.
	StatisticsTotal int

	// ReportLines is the number of distinct lines in the full report.
	ReportLines int
}

// Error implements the error interface.
func (e *CrossCheckError) Error() string {
	return fmt.Sprintf("%v: statistics total %d, report has %d distinct lines",
		ErrCrossCheck, e.StatisticsTotal, e.ReportLines)
}

// Unwrap returns ErrCrossCheck.
func (e *CrossCheckError) Unwrap() error {
	return ErrCrossCheck
}
