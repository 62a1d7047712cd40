// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint drives flake8 over a fixed set of target directories.
//
// The rule engine, its configuration and its output format all belong to
// flake8. This package only decides which flags are passed, where the
// output goes, and how the two resulting files are read back.
//
// # Run Sequence
//
// A run is three steps that always execute in this order:
//
//	Cleanup → Full Report → Statistics Summary
//
//	| Step        | Command                                                          | Artifact           |
//	|-------------|------------------------------------------------------------------|--------------------|
//	| Cleanup     | remove stale artifacts                                           | -                  |
//	| Full Report | flake8 --config CFG T1 T2 --output-file REPORT                   | flake8_errors.ini  |
//	| Summary     | flake8 --config CFG -qq --statistics T1 T2 --output-file SUMMARY | flake8_summary.ini |
//
// flake8 appends to --output-file, so Cleanup removes both artifacts.
// Without that, a second run would double every line.
//
// # Exit Status
//
// flake8 exits 1 when it finds violations and greater than 1 on usage
// errors. The Runner records the exit code of each invocation in its
// Invocation and does not branch on it. Only a step that cannot execute
// at all (binary missing, timeout, cancellation) stops the run.
//
// # Usage
//
//	runner := lint.NewRunner(lint.DefaultLinterConfig())
//	result, err := runner.Run(ctx)
//	if err != nil {
//	    // flake8 could not be executed
//	}
//	if err := lint.CrossCheck(result.Report); err != nil {
//	    // summary and full report disagree
//	}
//
// # Thread Safety
//
// A Runner is safe for concurrent use, but concurrent runs against the
// same output files will interleave. Callers serialize runs.
package lint
