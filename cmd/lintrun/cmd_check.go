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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/lintrun/services/lint"
)

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the existing summary agrees with the existing report",
		Long: `check parses the report and summary left by the last run, without running
flake8, and verifies that the statistics total equals the number of distinct
diagnostic lines in the report.

Exit status: 0 when they agree, 1 when they differ, 2 when an artifact
cannot be parsed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck()
		},
	}
}

func (a *app) runCheck() error {
	runner := a.newRunner()

	report, err := runner.ReadReport()
	if err != nil {
		a.printer.ErrorBox("cannot read artifacts", err.Error())
		return &ExitError{Code: ExitToolError, Err: err}
	}

	if err := lint.CrossCheck(report); err != nil {
		var mismatch *lint.CrossCheckError
		if errors.As(err, &mismatch) {
			a.printer.Error(fmt.Sprintf("summary counts %d issues, report has %d distinct lines",
				mismatch.StatisticsTotal, mismatch.ReportLines))
		}
		return &ExitError{Code: ExitFailure, Err: err}
	}

	a.printer.Success(fmt.Sprintf("summary and report agree on %d issues across %d rules",
		report.StatisticsTotal(), len(report.Statistics)))
	return nil
}
