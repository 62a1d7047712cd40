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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RUNNER
// =============================================================================

// waitDelay bounds how long a killed linter may keep its output pipes open.
const waitDelay = time.Second

// Runner executes the cleanup, full-report and summary steps.
//
// Description:
//
//	Owns a LinterConfig and a RulePolicy. The three steps run in fixed
//	order with no branching on flake8's exit status; only a step that
//	cannot execute stops the run.
//
// Thread Safety: Safe for concurrent use. See the package docs on
// concurrent runs sharing artifacts.
type Runner struct {
	config     *LinterConfig
	policy     *RulePolicy
	workingDir string
	env        []string
	lookPath   func(string) (string, error)
	newRunID   func() string
}

// Option configures the Runner.
type Option func(*Runner)

// WithWorkingDir sets the directory flake8 runs in. Relative targets,
// settings and artifacts are resolved against it.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) {
		r.workingDir = dir
	}
}

// WithPolicy sets the rule policy used to grade issues.
func WithPolicy(policy RulePolicy) Option {
	return func(r *Runner) {
		r.policy = &policy
	}
}

// WithEnv appends KEY=VALUE pairs to the linter's environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// withRunIDFunc replaces run ID generation. Used by tests.
func withRunIDFunc(fn func() string) Option {
	return func(r *Runner) {
		r.newRunID = fn
	}
}

// NewRunner creates a new runner.
//
// Inputs:
//
//	config - The linter configuration. Copied; later changes are not seen.
//	opts - Optional configuration options
//
// Outputs:
//
//	*Runner - The configured runner
func NewRunner(config LinterConfig, opts ...Option) *Runner {
	policy := DefaultPolicy
	r := &Runner{
		config:   config.Clone(),
		policy:   &policy,
		lookPath: exec.LookPath,
		newRunID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Config returns a copy of the runner's linter configuration.
func (r *Runner) Config() *LinterConfig {
	return r.config.Clone()
}

// Policy returns a copy of the runner's policy.
func (r *Runner) Policy() RulePolicy {
	return *r.policy
}

// Detect resolves the linter executable.
//
// Description:
//
//	A bare name is looked up on PATH. A relative path containing a
//	separator is resolved against the working directory, where flake8
//	will be started.
//
// Outputs:
//
//	string - Path of the executable
//	error - A *LinterError wrapping ErrLinterNotInstalled if not found
func (r *Runner) Detect() (string, error) {
	command := r.config.Command
	if strings.ContainsRune(command, filepath.Separator) {
		command = r.resolve(command)
	}
	path, err := r.lookPath(command)
	if err != nil {
		slog.Warn("Linter not installed",
			slog.String("command", r.config.Command),
		)
		return "", NewLinterError(r.config.Command, "", ErrLinterNotInstalled)
	}
	slog.Debug("Linter available",
		slog.String("command", r.config.Command),
		slog.String("path", path),
	)
	return path, nil
}

// ReportPath returns the resolved full-report artifact path.
func (r *Runner) ReportPath() string {
	return r.resolve(r.config.ReportPath())
}

// SummaryPath returns the resolved statistics artifact path.
func (r *Runner) SummaryPath() string {
	return r.resolve(r.config.SummaryPath())
}

func (r *Runner) resolve(path string) string {
	if r.workingDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.workingDir, path)
}

// =============================================================================
// STEPS
// =============================================================================

// Cleanup removes artifacts left by a previous run.
//
// Description:
//
//	flake8 appends to --output-file, so both artifacts are removed.
//	A missing file is not an error.
//
// Outputs:
//
//	error - The first removal error other than "not exist"
func (r *Runner) Cleanup() error {
	var firstErr error
	for _, path := range []string{r.ReportPath(), r.SummaryPath()} {
		err := os.Remove(path)
		switch {
		case err == nil:
			slog.Debug("Removed stale artifact", slog.String("path", path))
		case errors.Is(err, fs.ErrNotExist):
		default:
			if firstErr == nil {
				firstErr = fmt.Errorf("removing %s: %w", path, err)
			}
		}
	}
	return firstErr
}

// RunFullReport invokes flake8 to write every diagnostic to the report file.
//
// Outputs:
//
//	*Invocation - The invocation record, including flake8's exit code
//	error - Non-nil only if flake8 could not be executed
func (r *Runner) RunFullReport(ctx context.Context) (*Invocation, error) {
	return r.invoke(ctx, ModeFullReport)
}

// RunSummary invokes flake8 quietly with --statistics into the summary file.
//
// Outputs:
//
//	*Invocation - The invocation record, including flake8's exit code
//	error - Non-nil only if flake8 could not be executed
func (r *Runner) RunSummary(ctx context.Context) (*Invocation, error) {
	return r.invoke(ctx, ModeSummary)
}

// Run executes cleanup, full report and summary, then parses both artifacts.
//
// Description:
//
//	The steps run unconditionally in order. A cleanup failure is logged
//	and ignored. flake8's exit status is recorded but not acted on. An
//	artifact that cannot be parsed is logged and leaves Report nil.
//
// Inputs:
//
//	ctx - Context for cancellation
//
// Outputs:
//
//	*RunResult - The run outcome. Partially filled when err is non-nil.
//	error - Non-nil if a step could not execute
//
// Errors:
//
//	ErrLinterNotInstalled - flake8 not found
//	ErrLinterTimeout - An invocation exceeded the configured timeout
//	ErrLinterFailed - The process could not be started
//	context.Canceled - ctx was cancelled, wrapped like the others
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:     r.newRunID(),
		StartedAt: time.Now(),
	}

	ctx, span := startRunSpan(ctx, result.RunID, r.config)
	defer span.End()

	logger := slog.With(slog.String("run_id", result.RunID))

	if err := r.Cleanup(); err != nil {
		logger.WarnContext(ctx, "Cleanup failed, continuing", slog.String("error", err.Error()))
	}

	full, err := r.RunFullReport(ctx)
	result.Full = full
	if err != nil {
		result.Duration = time.Since(result.StartedAt)
		return result, err
	}

	summary, err := r.RunSummary(ctx)
	result.Summary = summary
	if err != nil {
		result.Duration = time.Since(result.StartedAt)
		return result, err
	}

	report, err := ReadReport(r.resolvedConfig())
	if err != nil {
		logger.WarnContext(ctx, "Could not parse artifacts", slog.String("error", err.Error()))
	} else {
		result.Report = report
		result.Blocking = ApplyPolicy(report.Issues, r.policy)
		recordReportMetrics(ctx, report, len(result.Blocking))
	}

	result.Duration = time.Since(result.StartedAt)
	setRunSpanResult(span, result.IssueCount(), len(result.Blocking), result.ExitCode())

	logger.InfoContext(ctx, "Lint run completed",
		slog.Duration("duration", result.Duration),
		slog.Int("issues", result.IssueCount()),
		slog.Int("blocking", len(result.Blocking)),
		slog.Int("exit_code", result.ExitCode()),
	)

	return result, nil
}

// ReadReport parses the artifacts currently on disk.
func (r *Runner) ReadReport() (*Report, error) {
	report, err := ReadReport(r.resolvedConfig())
	if err != nil {
		return nil, err
	}
	applySeverities(report.Issues, r.policy)
	return report, nil
}

// resolvedConfig returns a config whose artifact paths are usable from
// this process rather than from flake8's working directory.
func (r *Runner) resolvedConfig() *LinterConfig {
	c := r.config.Clone()
	if r.workingDir != "" && !filepath.IsAbs(c.OutputDir) {
		c.OutputDir = filepath.Join(r.workingDir, c.OutputDir)
	}
	return c
}

// =============================================================================
// EXECUTION
// =============================================================================

// invoke runs flake8 once in the given mode.
func (r *Runner) invoke(ctx context.Context, mode Mode) (*Invocation, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	inv := &Invocation{
		Mode:       mode,
		Command:    r.config.Command,
		Args:       r.config.Args(mode),
		OutputFile: r.resolve(r.config.OutputPath(mode)),
	}

	ctx, span := startInvocationSpan(ctx, mode, inv.OutputFile)
	start := time.Now()

	err := r.execute(ctx, inv)
	inv.Duration = time.Since(start)

	endInvocationSpan(span, inv, err)
	recordInvocationMetrics(ctx, mode, inv.Duration, inv.ExitCode, err == nil)

	if err != nil {
		return inv, err
	}

	slog.DebugContext(ctx, "Linter invocation finished",
		slog.String("mode", string(mode)),
		slog.String("output_file", inv.OutputFile),
		slog.Int("exit_code", inv.ExitCode),
		slog.Duration("duration", inv.Duration),
	)
	return inv, nil
}

// execute runs the subprocess and fills the exit code and output fields.
func (r *Runner) execute(ctx context.Context, inv *Invocation) error {
	cmdCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, inv.Command, inv.Args...)
	cmd.WaitDelay = waitDelay
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	inv.Stdout = stdout.String()
	inv.Stderr = stderr.String()

	if cmdCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		inv.ExitCode = -1
		return invocationError(inv, ErrLinterTimeout).WithOutput(inv.Stderr)
	}

	if ctx.Err() != nil {
		inv.ExitCode = -1
		return invocationError(inv, ctx.Err())
	}

	if err == nil {
		inv.ExitCode = 0
		return nil
	}

	// flake8 exits non-zero on findings and on its own usage errors.
	// Both are outcomes of a completed step, not step failures.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		inv.ExitCode = exitErr.ExitCode()
		return nil
	}

	inv.ExitCode = -1
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return invocationError(inv, ErrLinterNotInstalled)
	}
	return invocationError(inv, fmt.Errorf("%w: %v", ErrLinterFailed, err)).
		WithOutput(inv.Stderr)
}
