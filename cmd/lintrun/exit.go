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

	"github.com/AleutianAI/lintrun/cmd/lintrun/config"
	"github.com/AleutianAI/lintrun/services/lint"
)

// Process exit codes that are not taken from the linter.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitToolError    = 2
	ExitTimeout      = 124
	ExitNotInstalled = 127
	ExitInterrupted  = 130
)

// ExitError carries a process exit code out of a command.
//
// # Description
//
// Commands return an ExitError instead of calling os.Exit so that deferred
// cleanup (telemetry flush, log file close) runs, and so tests can assert
// on the code. Err may be nil when the code is a verdict rather than a
// failure, e.g. flake8 reporting findings.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exit %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("exit %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeOf maps a command error to a process exit code.
func exitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// fatalExitCode maps a run that could not complete.
func fatalExitCode(err error) int {
	switch {
	case errors.Is(err, lint.ErrLinterNotInstalled):
		return ExitNotInstalled
	case errors.Is(err, lint.ErrLinterTimeout):
		return ExitTimeout
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// runExitCode turns a completed run into an exit code.
//
// # Description
//
//	propagate - the statistics invocation's exit code
//	never     - 0
//	policy    - 2 if flake8 reported a usage or config error, or if the
//	            artifacts could not be parsed; 1 if any issue matched
//	            block_on; 0 otherwise
func runExitCode(mode config.ExitMode, result *lint.RunResult) int {
	switch mode {
	case config.ExitNever:
		return ExitOK
	case config.ExitPolicy:
		if (result.Full != nil && result.Full.ToolError()) ||
			(result.Summary != nil && result.Summary.ToolError()) ||
			result.Report == nil {
			return ExitToolError
		}
		if len(result.Blocking) > 0 {
			return ExitFailure
		}
		return ExitOK
	default:
		return result.ExitCode()
	}
}
