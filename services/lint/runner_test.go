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
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFlake8 mimics the parts of flake8 the runner relies on: it appends
// canned content to --output-file and exits with a chosen code.
const fakeFlake8 = `#!/bin/sh
if [ -n "$FAKE_ARGS_LOG" ]; then
  echo "$@" >> "$FAKE_ARGS_LOG"
fi
out=""
quiet=0
while [ $# -gt 0 ]; do
  case "$1" in
    --output-file) out="$2"; shift ;;
    -qq) quiet=1 ;;
  esac
  shift
done
if [ -n "$FAKE_SLEEP" ]; then
  sleep "$FAKE_SLEEP"
fi
if [ "$quiet" = 1 ]; then src="$FAKE_STATS"; else src="$FAKE_REPORT"; fi
: >> "$out"
if [ -n "$src" ] && [ -s "$src" ]; then
  cat "$src" >> "$out"
fi
echo "fake flake8 stderr" >&2
exit "${FAKE_EXIT:-0}"
`

const sampleReport = `../desc/grid.py:12:80: E501 line too long (88 > 79 characters)
../desc/grid.py:40:1: F401 'numpy as np' imported but unused
../tests/test_basis.py:3:1: E302 expected 2 blank lines, found 1
`

const sampleStats = `1     E302 expected 2 blank lines, found 1
1     E501 line too long (88 > 79 characters)
1     F401 'numpy as np' imported but unused
`

type fakeEnv struct {
	dir     string
	command string
	argsLog string
	env     []string
}

func newFakeEnv(t *testing.T, report, stats string, exitCode string) *fakeEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake linter is a POSIX shell script")
	}

	dir := t.TempDir()
	command := filepath.Join(dir, "flake8")
	require.NoError(t, os.WriteFile(command, []byte(fakeFlake8), 0o755))

	reportSrc := filepath.Join(dir, "report.src")
	statsSrc := filepath.Join(dir, "stats.src")
	require.NoError(t, os.WriteFile(reportSrc, []byte(report), 0o644))
	require.NoError(t, os.WriteFile(statsSrc, []byte(stats), 0o644))

	argsLog := filepath.Join(dir, "args.log")
	return &fakeEnv{
		dir:     dir,
		command: command,
		argsLog: argsLog,
		env: []string{
			"FAKE_REPORT=" + reportSrc,
			"FAKE_STATS=" + statsSrc,
			"FAKE_EXIT=" + exitCode,
			"FAKE_ARGS_LOG=" + argsLog,
		},
	}
}

func (f *fakeEnv) runner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	config := DefaultLinterConfig()
	config.Command = f.command
	config.OutputDir = filepath.Join(f.dir, "out")
	require.NoError(t, os.MkdirAll(config.OutputDir, 0o755))

	all := []Option{WithWorkingDir(f.dir), WithEnv(f.env...)}
	return NewRunner(config, append(all, opts...)...)
}

func TestNewRunner(t *testing.T) {
	runner := NewRunner(DefaultLinterConfig())

	assert.NotNil(t, runner.config)
	assert.NotNil(t, runner.policy)
	assert.Equal(t, DefaultCommand, runner.Config().Command)
	assert.Equal(t, DefaultPolicy.BlockOn, runner.Policy().BlockOn)
}

func TestNewRunner_ConfigIsCopied(t *testing.T) {
	config := DefaultLinterConfig()
	runner := NewRunner(config)

	config.Targets[0] = "mutated"
	assert.Equal(t, "../desc", runner.Config().Targets[0])
}

func TestRunner_Detect_NotInstalled(t *testing.T) {
	config := DefaultLinterConfig()
	config.Command = "definitely-not-a-linter-binary"
	runner := NewRunner(config)

	_, err := runner.Detect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLinterNotInstalled))
	assert.Equal(t, "definitely-not-a-linter-binary: linter not installed", err.Error())
}

func TestRunner_Detect_RelativeToWorkingDir(t *testing.T) {
	fake := newFakeEnv(t, "", "", "0")
	config := DefaultLinterConfig()
	config.Command = "./flake8"
	runner := NewRunner(config, WithWorkingDir(fake.dir))

	path, err := runner.Detect()
	require.NoError(t, err)
	assert.Equal(t, fake.command, path)
}

func TestRunner_Cleanup_MissingFiles(t *testing.T) {
	config := DefaultLinterConfig()
	config.OutputDir = t.TempDir()
	runner := NewRunner(config)

	assert.NoError(t, runner.Cleanup())
}

func TestRunner_Cleanup_RemovesBothArtifacts(t *testing.T) {
	config := DefaultLinterConfig()
	config.OutputDir = t.TempDir()
	runner := NewRunner(config)

	require.NoError(t, os.WriteFile(runner.ReportPath(), []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(runner.SummaryPath(), []byte("stale"), 0o644))

	require.NoError(t, runner.Cleanup())
	assert.NoFileExists(t, runner.ReportPath())
	assert.NoFileExists(t, runner.SummaryPath())
}

func TestRunner_Run_NilContext(t *testing.T) {
	runner := NewRunner(DefaultLinterConfig())

	_, err := runner.Run(nil) //nolint:staticcheck
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunner_Run_InvalidConfig(t *testing.T) {
	config := DefaultLinterConfig()
	config.Targets = nil
	runner := NewRunner(config)

	_, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunner_Run_NotInstalled(t *testing.T) {
	config := DefaultLinterConfig()
	config.Command = "definitely-not-a-linter-binary"
	config.OutputDir = t.TempDir()
	runner := NewRunner(config)

	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLinterNotInstalled)

	var linterErr *LinterError
	require.True(t, errors.As(err, &linterErr))
	assert.Equal(t, ModeFullReport, linterErr.Mode)
	assert.Equal(t, runner.Config().Args(ModeFullReport), linterErr.Args)
	assert.Contains(t, linterErr.CommandLine(), "definitely-not-a-linter-binary --config ../setup.cfg")

	require.NotNil(t, result)
	assert.Nil(t, result.Summary, "summary must not run after a fatal step")
}

func TestRunner_Run_WithFindings(t *testing.T) {
	fake := newFakeEnv(t, sampleReport, sampleStats, "1")
	runner := fake.runner(t, withRunIDFunc(func() string { return "run-1" }))

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	require.NotNil(t, result.Full)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 1, result.Full.ExitCode)
	assert.Equal(t, 1, result.Summary.ExitCode)
	assert.Equal(t, 1, result.ExitCode())
	assert.True(t, result.Summary.FoundIssues())
	assert.Contains(t, result.Full.Stderr, "fake flake8 stderr")

	require.NotNil(t, result.Report)
	assert.Len(t, result.Report.Issues, 3)
	assert.Equal(t, 3, result.Report.StatisticsTotal())
	assert.NoError(t, CrossCheck(result.Report))
	assert.Empty(t, result.Blocking)

	assert.FileExists(t, runner.ReportPath())
	assert.FileExists(t, runner.SummaryPath())
}

func TestRunner_Run_ArgumentsPerMode(t *testing.T) {
	fake := newFakeEnv(t, "", "", "0")
	runner := fake.runner(t)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(fake.argsLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t,
		"--config ../setup.cfg ../desc ../tests --output-file "+runner.ReportPath(),
		lines[0])
	assert.Equal(t,
		"--config ../setup.cfg -qq --statistics ../desc ../tests --output-file "+runner.SummaryPath(),
		lines[1])
}

func TestRunner_Run_Clean(t *testing.T) {
	fake := newFakeEnv(t, "", "", "0")
	runner := fake.runner(t)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode())
	assert.FileExists(t, runner.ReportPath())
	assert.FileExists(t, runner.SummaryPath())
	require.NotNil(t, result.Report)
	assert.Empty(t, result.Report.Issues)
	assert.Equal(t, 0, result.Report.StatisticsTotal())
	assert.NoError(t, CrossCheck(result.Report))
}

func TestRunner_Run_Idempotent(t *testing.T) {
	fake := newFakeEnv(t, sampleReport, sampleStats, "1")
	runner := fake.runner(t)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	firstReport, err := os.ReadFile(runner.ReportPath())
	require.NoError(t, err)
	firstSummary, err := os.ReadFile(runner.SummaryPath())
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	secondReport, err := os.ReadFile(runner.ReportPath())
	require.NoError(t, err)
	secondSummary, err := os.ReadFile(runner.SummaryPath())
	require.NoError(t, err)

	assert.Equal(t, firstReport, secondReport)
	assert.Equal(t, firstSummary, secondSummary)

	entries, err := os.ReadDir(filepath.Dir(runner.ReportPath()))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunner_Run_ToolErrorDoesNotStopSummary(t *testing.T) {
	fake := newFakeEnv(t, "", "", "2")
	runner := fake.runner(t)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Summary)
	assert.True(t, result.Full.ToolError())
	assert.Equal(t, 2, result.ExitCode())
}

func TestRunner_Run_BlockingPolicy(t *testing.T) {
	fake := newFakeEnv(t, sampleReport, sampleStats, "1")
	runner := fake.runner(t, WithPolicy(RulePolicy{BlockOn: []string{"F4"}}))

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Blocking, 1)
	assert.Equal(t, "F401", result.Blocking[0].Rule)
	assert.Equal(t, SeverityError, result.Blocking[0].Severity)
}

func TestRunner_Run_Timeout(t *testing.T) {
	fake := newFakeEnv(t, "", "", "0")
	fake.env = append(fake.env, "FAKE_SLEEP=5")
	runner := fake.runner(t)
	runner.config.Timeout = 100 * time.Millisecond

	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLinterTimeout)
	assert.Equal(t, -1, result.Full.ExitCode)
}

func TestRunner_Run_Cancelled(t *testing.T) {
	fake := newFakeEnv(t, "", "", "0")
	runner := fake.runner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var linterErr *LinterError
	require.ErrorAs(t, err, &linterErr)
	assert.Equal(t, ModeFullReport, linterErr.Mode)
	assert.Contains(t, linterErr.Args, "--output-file")
}

func TestRunner_ReadReport(t *testing.T) {
	fake := newFakeEnv(t, sampleReport, sampleStats, "1")
	runner := fake.runner(t)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	report, err := runner.ReadReport()
	require.NoError(t, err)
	assert.Equal(t, []string{"E302", "E501", "F401"}, report.Rules())
}

func TestRunner_ReadReport_AppliesPolicySeverities(t *testing.T) {
	fake := newFakeEnv(t, sampleReport, sampleStats, "1")
	runner := fake.runner(t, WithPolicy(RulePolicy{WarnOn: []string{"F"}, Ignore: []string{"E501"}}))

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	report, err := runner.ReadReport()
	require.NoError(t, err)
	counts := report.CountBySeverity()
	assert.Equal(t, 1, counts[SeverityInfo], "E501 is ignored")
	assert.Equal(t, 2, counts[SeverityWarning], "F401 is downgraded from error")
	assert.Equal(t, 0, counts[SeverityError])
}
