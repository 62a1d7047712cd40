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
	"fmt"
	"path/filepath"
	"time"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// Defaults used when no lintrun config is supplied. They reproduce the
// paths of the devtools script this tool replaced, which runs from a
// directory one level below the project root.
const (
	DefaultCommand     = "flake8"
	DefaultSettings    = "../setup.cfg"
	DefaultReportFile  = "flake8_errors.ini"
	DefaultSummaryFile = "flake8_summary.ini"
	DefaultTimeout     = 10 * time.Minute
)

// DefaultTargets are the two directories scanned by default.
var DefaultTargets = []string{"../desc", "../tests"}

// =============================================================================
// LINTER CONFIG
// =============================================================================

// LinterConfig configures how to run flake8.
//
// Thread Safety: Treat as immutable after creation.
type LinterConfig struct {
	// Command is the linter executable name or path.
	Command string

	// Settings is the path passed to --config.
	Settings string

	// Targets are the positional path arguments.
	Targets []string

	// OutputDir is the directory the artifacts are written to.
	// Empty means the working directory.
	OutputDir string

	// ReportFile is the full-report artifact name.
	ReportFile string

	// SummaryFile is the statistics artifact name.
	SummaryFile string

	// Timeout bounds each invocation. Zero disables the bound.
	Timeout time.Duration

	// ExtraArgs are appended before the targets in both modes.
	ExtraArgs []string
}

// DefaultLinterConfig returns the built-in configuration.
func DefaultLinterConfig() LinterConfig {
	targets := make([]string, len(DefaultTargets))
	copy(targets, DefaultTargets)
	return LinterConfig{
		Command:     DefaultCommand,
		Settings:    DefaultSettings,
		Targets:     targets,
		ReportFile:  DefaultReportFile,
		SummaryFile: DefaultSummaryFile,
		Timeout:     DefaultTimeout,
	}
}

// Clone returns a deep copy of the config.
func (c *LinterConfig) Clone() *LinterConfig {
	clone := *c
	clone.Targets = make([]string, len(c.Targets))
	copy(clone.Targets, c.Targets)
	clone.ExtraArgs = make([]string, len(c.ExtraArgs))
	copy(clone.ExtraArgs, c.ExtraArgs)
	return &clone
}

// Validate checks that the config can produce a command line.
func (c *LinterConfig) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("%w: command must not be empty", ErrInvalidInput)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: at least one target is required", ErrInvalidInput)
	}
	if c.ReportFile == "" || c.SummaryFile == "" {
		return fmt.Errorf("%w: report and summary file names are required", ErrInvalidInput)
	}
	if c.ReportPath() == c.SummaryPath() {
		return fmt.Errorf("%w: report and summary must be different files", ErrInvalidInput)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidInput)
	}
	return nil
}

// ReportPath returns the full-report artifact path.
func (c *LinterConfig) ReportPath() string {
	return c.artifactPath(c.ReportFile)
}

// SummaryPath returns the statistics artifact path.
func (c *LinterConfig) SummaryPath() string {
	return c.artifactPath(c.SummaryFile)
}

// OutputPath returns the artifact path for a mode.
func (c *LinterConfig) OutputPath(mode Mode) string {
	if mode == ModeSummary {
		return c.SummaryPath()
	}
	return c.ReportPath()
}

func (c *LinterConfig) artifactPath(name string) string {
	if c.OutputDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

// Args builds the argument list for a mode.
//
// Description:
//
//	Full report:  --config CFG [extra] T1 T2 --output-file REPORT
//	Summary:      --config CFG -qq --statistics [extra] T1 T2 --output-file SUMMARY
//
//	The --config flag is omitted when Settings is empty so flake8 falls
//	back to its own discovery.
//
// Inputs:
//
//	mode - ModeFullReport or ModeSummary
//
// Outputs:
//
//	[]string - Arguments, excluding the executable
func (c *LinterConfig) Args(mode Mode) []string {
	args := make([]string, 0, 6+len(c.ExtraArgs)+len(c.Targets))
	if c.Settings != "" {
		args = append(args, "--config", c.Settings)
	}
	if mode == ModeSummary {
		args = append(args, "-qq", "--statistics")
	}
	args = append(args, c.ExtraArgs...)
	args = append(args, c.Targets...)
	args = append(args, "--output-file", c.OutputPath(mode))
	return args
}
